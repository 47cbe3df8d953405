package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"teacher1/config"
	"teacher1/helper/timer"
	"teacher1/speech"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const listenRetryDelay = 2 * time.Second

// RunChatbot runs the chatbot node. Lines read from the speech recognizer, or
// from stdin without one, are handled as user utterances.
func RunChatbot(ctx context.Context, cfg *config.Config) {
	s, err := newChatbotStack(cfg, true)
	if err != nil {
		log.Fatalf("Failed to create chatbot node: %v", err)
	}
	defer s.Close()

	side := cfg.Relay.Chatbot
	log.Infof("Chatbot node %s listening on %s, peer %s at %s", side.Name, s.node.Addr(), side.Peer, side.PeerURL())

	speaker := speech.NewSpeaker(cfg.Speech.Enabled, cfg.Speech.TTSCommand, cfg.Speech.Timeout.Duration)
	var listener speech.Listener = speech.NewListener(cfg.Speech.Enabled && cfg.Speech.STTCommand != "", cfg.Speech.STTCommand, cfg.Speech.Timeout.Duration)
	if _, ok := listener.(speech.Nop); ok {
		listener = speech.NewReaderListener(os.Stdin)
	}

	wg, cctx := errgroup.WithContext(ctx)
	wg.Go(func() error { return s.node.Run(cctx) })
	wg.Go(func() error { return s.bot.Run(cctx) })
	// A blocked stdin read cannot be interrupted, so the loop is not part of the group.
	go listenLoop(cctx, s, listener, speaker)
	wg.Go(func() error {
		return logStats(cctx, s.node, func() log.Fields {
			st := s.bot.Stats()
			return log.Fields{
				"topic":   st.EducationalContext.CurrentTopic,
				"asked":   st.QuestionsAsked,
				"entries": st.TranscriptEntries,
			}
		})
	})

	if err := wg.Wait(); !finished(err) {
		log.Errorf("Chatbot node stopped: %v", err)
	}
	log.Info("Chatbot node stopped")
}

// listenLoop feeds recognized lines to the bot until ctx is cancelled or the
// input runs dry. Running dry only stops the loop, not the node.
func listenLoop(ctx context.Context, s *chatbotStack, l speech.Listener, sp speech.Speaker) {
	for ctx.Err() == nil {
		text, err := l.Listen(ctx)
		switch {
		case errors.Is(err, speech.ErrNotUnderstood):
			continue
		case errors.Is(err, speech.ErrNoInput):
			log.Debug("Chatbot: no more user input")
			return
		case err != nil:
			log.Warnf("Chatbot: listening failed: %v", err)
			timer.Sleep(ctx, listenRetryDelay)
			continue
		}

		u, err := s.bot.Utter(ctx, text)
		if err != nil {
			log.Warnf("Chatbot: utterance not handled: %v", err)
			continue
		}
		fmt.Println(u.Reply.Text)
		if err := sp.Speak(ctx, u.Reply.Text); err != nil {
			log.Warnf("Chatbot: speaking reply: %v", err)
		}
	}
}
