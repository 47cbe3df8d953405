package commands

import (
	"context"
	"os"

	"teacher1/config"
	"teacher1/console"
	"teacher1/speech"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RunChat runs the chatbot node behind a terminal console. Logs go to
// logFile so they don't tear the screen.
func RunChat(ctx context.Context, cfg *config.Config, logFile string) {
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer f.Close()
	log.SetOutput(f)

	s, err := newChatbotStack(cfg, true)
	if err != nil {
		log.Fatalf("Failed to create chatbot node: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg, cctx := errgroup.WithContext(ctx)
	wg.Go(func() error { return s.node.Run(cctx) })
	wg.Go(func() error { return s.bot.Run(cctx) })

	err = console.Run(cctx, s.bot, console.Options{
		Title:      "Teacher1 Chat · " + cfg.Relay.Chatbot.Name,
		Speaker:    speech.NewSpeaker(cfg.Speech.Enabled, cfg.Speech.TTSCommand, cfg.Speech.Timeout.Duration),
		LinkStatus: func() string { return s.node.LinkStatus().String() },
		AltScreen:  true,
	})
	if err != nil {
		log.Errorf("Console failed: %v", err)
	}

	cancel()
	if err := wg.Wait(); !finished(err) {
		log.Errorf("Chatbot node stopped: %v", err)
	}
	log.Info("Chat stopped")
}
