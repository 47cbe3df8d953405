package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"teacher1/chatbot"
	"teacher1/chatbot/generator"
	"teacher1/config"
	"teacher1/datastore/flatfs"
	"teacher1/datastore/leveldb"
	"teacher1/helper/timer"
	"teacher1/net/wsrelay"
	"teacher1/relay/node"

	log "github.com/sirupsen/logrus"
)

const statsInterval = 30 * time.Second

func nodeConfig(cfg *config.Config, side config.NodeConfig) node.Config {
	return node.Config{
		Name:          side.Name,
		Peer:          side.Peer,
		PeerURL:       side.PeerURL(),
		AnswerTimeout: cfg.Relay.AnswerTimeout.Duration,
		DedupCapacity: cfg.Relay.DedupCapacity,
		DedupMaxAge:   cfg.Relay.DedupMaxAge.Duration,
		Client: wsrelay.ClientOptions{
			MaxAttempts:    cfg.Relay.DialAttempts,
			InitialBackoff: cfg.Relay.InitialBackoff.Duration,
			MaxBackoff:     cfg.Relay.MaxBackoff.Duration,
			RetryCooldown:  cfg.Relay.RetryCooldown.Duration,
		},
	}
}

// newRelayNode listens on side.Listen and opens the side's journal, if any.
// The returned close func releases the journal.
func newRelayNode(cfg *config.Config, side config.NodeConfig, h node.Handlers, opts ...node.Option) (*node.Node, func(), error) {
	closer := func() {}

	if side.JournalPath != "" {
		j, err := leveldb.NewJournal(side.JournalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening journal %s: %w", side.JournalPath, err)
		}
		log.Infof("Journal %s at seq %d", side.JournalPath, j.GetSeq())
		opts = append(opts, node.WithJournal(j))
		closer = func() {
			if err := j.Close(); err != nil {
				log.Errorf("Failed to close journal: %v", err)
			}
		}
	}

	l, err := net.Listen("tcp", side.Listen)
	if err != nil {
		closer()
		return nil, nil, fmt.Errorf("listening on %s: %w", side.Listen, err)
	}

	return node.New(nodeConfig(cfg, side), l, h, opts...), closer, nil
}

// chatbotStack is the chatbot node with its collaborators.
type chatbotStack struct {
	bot     *chatbot.Bot
	node    *node.Node
	closers []func()
}

func (s *chatbotStack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newResponder(cfg *config.Config) *chatbot.Responder {
	var gen generator.Generator
	if cfg.Chatbot.GeneratorURL != "" {
		gen = generator.NewHTTP(generator.Config{
			URL:              cfg.Chatbot.GeneratorURL,
			Model:            cfg.Chatbot.Model,
			Timeout:          cfg.Chatbot.Timeout.Duration,
			FailureThreshold: cfg.Chatbot.BreakerThreshold,
			OpenTimeout:      cfg.Chatbot.BreakerOpenTimeout.Duration,
		})
		log.Infof("Chatbot: dialogue model %s at %s", cfg.Chatbot.Model, cfg.Chatbot.GeneratorURL)
	} else {
		log.Info("Chatbot: no dialogue model configured, answering from templates")
	}
	return chatbot.NewResponder(gen, cfg.Chatbot.Seed)
}

// newChatbotStack builds the bot; withRelay also attaches it to a relay node.
func newChatbotStack(cfg *config.Config, withRelay bool) (*chatbotStack, error) {
	s := &chatbotStack{}

	store, err := flatfs.New(cfg.DataStore.TranscriptPath)
	if err != nil {
		return nil, fmt.Errorf("opening transcript store: %w", err)
	}
	s.closers = append(s.closers, func() { store.Close() })

	s.bot = chatbot.NewBot(cfg.Relay.Chatbot.Name, newResponder(cfg), chatbot.BotConfig{
		Greet:             cfg.Chatbot.Greet,
		ProactiveInterval: cfg.Chatbot.ProactiveInterval.Duration,
	}, store)

	if !withRelay {
		return s, nil
	}

	n, closer, err := newRelayNode(cfg, cfg.Relay.Chatbot, s.bot, node.WithStatusListener(s.bot.LinkChanged))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, closer)
	s.node = n
	s.bot.SetAsker(n)
	return s, nil
}

// logStats periodically reports node stats, plus whatever extra returns.
func logStats(ctx context.Context, n *node.Node, extra func() log.Fields) error {
	interval := &timer.Interval{Duration: statsInterval, Jitter: statsInterval / 10}
	return timer.RunWithTicker(ctx, interval, func(ctx context.Context) error {
		st := n.Stats()
		fields := log.Fields{
			"link":       st.LinkStatus,
			"state":      st.State,
			"sent":       st.Sent,
			"received":   st.Received,
			"duplicates": st.Duplicates,
			"timeouts":   st.Timeouts,
		}
		if extra != nil {
			for k, v := range extra() {
				fields[k] = v
			}
		}
		log.WithFields(fields).Infof("%s stats", st.Name)
		return nil
	})
}

func finished(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}
