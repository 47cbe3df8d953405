package fractal

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"teacher1/helper/timer"
	"teacher1/relay/node"
	"teacher1/relay/protocol"

	"github.com/google/uuid"

	log "github.com/sirupsen/logrus"
)

// Asker originates questions on the relay. *node.Node satisfies it.
type Asker interface {
	Ask(ctx context.Context, content string) (uuid.UUID, error)
	Ready() bool
}

var _ Asker = (*node.Node)(nil)
var _ node.Handlers = (*Agent)(nil)

type AgentConfig struct {
	StepInterval   time.Duration
	InsightEvery   int     // steps between insight checks
	AskProbability float64 // chance an insight becomes a question
	LogSize        int
	Seed           int64
}

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		StepInterval:   100 * time.Millisecond,
		InsightEvery:   100,
		AskProbability: 0.3,
		LogSize:        200,
		Seed:           time.Now().UnixNano(),
	}
}

// Agent runs a Simulation and talks about it over the relay.
type Agent struct {
	sim   *Simulation
	cfg   AgentConfig
	asker Asker

	mu       sync.Mutex
	rng      *rand.Rand
	insights []string
	commLog  []string
	asked    int
}

func NewAgent(sim *Simulation, cfg AgentConfig) *Agent {
	d := DefaultAgentConfig()
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = d.StepInterval
	}
	if cfg.InsightEvery <= 0 {
		cfg.InsightEvery = d.InsightEvery
	}
	if cfg.LogSize <= 0 {
		cfg.LogSize = d.LogSize
	}
	return &Agent{
		sim: sim,
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// SetAsker attaches the relay node used for originated questions.
func (a *Agent) SetAsker(asker Asker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.asker = asker
}

func (a *Agent) Simulation() *Simulation {
	return a.sim
}

// Run steps the simulation until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	interval := &timer.Interval{
		Duration: a.cfg.StepInterval,
		Jitter:   a.cfg.StepInterval / 10,
	}
	err := timer.RunWithTicker(ctx, interval, a.Tick)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Tick advances one step and checks for insights every InsightEvery steps.
func (a *Agent) Tick(ctx context.Context) error {
	step := a.sim.Step()
	if step%a.cfg.InsightEvery != 0 {
		return nil
	}
	a.observe(ctx)
	return nil
}

func (a *Agent) observe(ctx context.Context) {
	sm := a.sim.Summary()
	insights := sm.Insights()

	a.mu.Lock()
	a.insights = insights
	asker := a.asker
	roll := a.rng.Float64()
	a.mu.Unlock()

	log.WithField("step", sm.Step).Debugf("Simulation: mean=%.3f var=%.3f insights=%d", sm.Mean, sm.Variance, len(insights))

	if len(insights) == 0 || roll >= a.cfg.AskProbability || asker == nil || !asker.Ready() {
		return
	}

	q := fmt.Sprintf("I'm observing: %s. What educational applications could this suggest?", insights[0])
	if _, err := asker.Ask(ctx, q); err != nil {
		log.Warnf("Simulation: could not ask about insight: %v", err)
		return
	}

	a.mu.Lock()
	a.asked++
	a.mu.Unlock()
	a.appendLog("Asked: " + q)
}

func (a *Agent) OnQuestion(ctx context.Context, m *protocol.Message) (string, error) {
	a.appendLog("Received: " + m.Content)

	sm := a.sim.Summary()
	var b strings.Builder
	fmt.Fprintf(&b, "Fractal AI Analysis: Current system state shows mean=%.3f, std=%.3f, entropy=%.3f. ", sm.Mean, sm.Std, sm.Entropy)

	q := strings.ToLower(m.Content)
	switch {
	case strings.Contains(q, "pattern"):
		b.WriteString("Detecting complex emergent patterns in the fractal space.")
	case strings.Contains(q, "learn"):
		b.WriteString("Continuous meta-learning is active across all dimensions.")
	case strings.Contains(q, "state"):
		fmt.Fprintf(&b, "System is evolving with %d activated nodes.", sm.Active)
	default:
		b.WriteString("Processing through recursive fractal dynamics.")
	}

	reply := b.String()
	a.appendLog("Responded: " + reply)
	return reply, nil
}

func (a *Agent) OnAnswer(ctx context.Context, m *protocol.Message) error {
	a.appendLog("Answer received: " + m.Content)

	ans := strings.ToLower(m.Content)
	switch {
	case strings.Contains(ans, "math"):
		a.sim.Boost(ParamHierarchy, 1.01)
	case strings.Contains(ans, "creative"):
		a.sim.Boost(ParamNeighborhood, 1.02)
	}
	return nil
}

func (a *Agent) OnAck(ctx context.Context, m *protocol.Message) error {
	a.appendLog("Ack: " + m.Content)
	return nil
}

func (a *Agent) appendLog(line string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commLog = append(a.commLog, line)
	if over := len(a.commLog) - a.cfg.LogSize; over > 0 {
		a.commLog = append(a.commLog[:0], a.commLog[over:]...)
	}
}

// CommunicationLog returns a copy of the recent exchange lines.
func (a *Agent) CommunicationLog() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.commLog...)
}

type Stats struct {
	Summary
	CommunicationMessages int         `json:"communication_messages"`
	QuestionsAsked        int         `json:"questions_asked"`
	LastInsights          []string    `json:"last_insights"`
	Relay                 *node.Stats `json:"relay,omitempty"`
}

// relayStats is implemented by *node.Node.
type relayStats interface {
	Stats() node.Stats
}

// Stats includes the relay's stats when the asker is a node.
func (a *Agent) Stats() Stats {
	sm := a.sim.Summary()
	a.mu.Lock()
	st := Stats{
		Summary:               sm,
		CommunicationMessages: len(a.commLog),
		QuestionsAsked:        a.asked,
		LastInsights:          append([]string(nil), a.insights...),
	}
	asker := a.asker
	a.mu.Unlock()

	if rs, ok := asker.(relayStats); ok {
		relay := rs.Stats()
		st.Relay = &relay
	}
	return st
}
