package commands

import (
	"context"
	"net"

	"teacher1/config"
	"teacher1/datastore/leveldb"
	"teacher1/tutor"
	"teacher1/web"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RunWeb serves the browser front end. With web.forward_to_relay set it also
// runs the chatbot relay node, so it takes the place of the chatbot command.
func RunWeb(ctx context.Context, cfg *config.Config) {
	idx, err := leveldb.NewProfileIndex(cfg.DataStore.ProfilePath)
	if err != nil {
		log.Fatalf("Failed to open profile index: %v", err)
	}
	defer idx.Close()

	s, err := newChatbotStack(cfg, cfg.Web.ForwardToRelay)
	if err != nil {
		log.Fatalf("Failed to create chatbot: %v", err)
	}
	defer s.Close()

	srv, err := web.New(web.Config{
		AllowedDomains:   cfg.Web.AllowedDomains,
		MaxMessageLength: cfg.Web.MaxMessageLength,
		RateLimit:        cfg.Web.RateLimit,
		RateBurst:        cfg.Web.RateBurst,
		ForwardToRelay:   cfg.Web.ForwardToRelay,
	}, tutor.New(idx, cfg.Chatbot.Seed), s.bot)
	if err != nil {
		log.Fatalf("Failed to create web server: %v", err)
	}

	l, err := net.Listen("tcp", cfg.Web.Listen)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.Web.Listen, err)
	}

	wg, cctx := errgroup.WithContext(ctx)
	wg.Go(func() error { return srv.Serve(cctx, l) })
	wg.Go(func() error { return s.bot.Run(cctx) })
	if s.node != nil {
		wg.Go(func() error { return s.node.Run(cctx) })
		wg.Go(func() error {
			return logStats(cctx, s.node, func() log.Fields {
				return log.Fields{"web_sessions": srv.ActiveSessions()}
			})
		})
	}

	if err := wg.Wait(); !finished(err) {
		log.Errorf("Web front end stopped: %v", err)
	}
	log.Info("Web front end stopped")
}
