package commands

import (
	"context"

	"teacher1/config"
	"teacher1/fractal"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RunAI runs the simulation node until ctx is cancelled.
func RunAI(ctx context.Context, cfg *config.Config) {
	sim := fractal.NewSimulation(fractal.SimConfig{
		Size:         cfg.Simulation.Size,
		Channels:     cfg.Simulation.Channels,
		StateDim:     cfg.Simulation.StateDim,
		LearningRate: cfg.Simulation.LearningRate,
		Seed:         cfg.Simulation.Seed,
	})
	agent := fractal.NewAgent(sim, fractal.AgentConfig{
		StepInterval:   cfg.Simulation.StepInterval.Duration,
		InsightEvery:   cfg.Simulation.InsightEvery,
		AskProbability: cfg.Simulation.AskProbability,
		Seed:           cfg.Simulation.Seed,
	})

	n, closeJournal, err := newRelayNode(cfg, cfg.Relay.AI, agent)
	if err != nil {
		log.Fatalf("Failed to create AI node: %v", err)
	}
	defer closeJournal()
	agent.SetAsker(n)

	log.Infof("AI node %s listening on %s, peer %s at %s", cfg.Relay.AI.Name, n.Addr(), cfg.Relay.AI.Peer, cfg.Relay.AI.PeerURL())

	wg, cctx := errgroup.WithContext(ctx)
	wg.Go(func() error { return n.Run(cctx) })
	wg.Go(func() error { return agent.Run(cctx) })
	wg.Go(func() error {
		return logStats(cctx, n, func() log.Fields {
			st := agent.Stats()
			return log.Fields{
				"step":    st.Step,
				"entropy": st.Entropy,
				"active":  st.Active,
				"asked":   st.QuestionsAsked,
			}
		})
	})

	if err := wg.Wait(); !finished(err) {
		log.Errorf("AI node stopped: %v", err)
	}
	log.Info("AI node stopped")
}
