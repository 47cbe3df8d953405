package fractal

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"teacher1/relay/node"
	"teacher1/relay/protocol"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallSim() *Simulation {
	return NewSimulation(SimConfig{Size: 6, Channels: 2, StateDim: 3, Seed: 42})
}

func fill(s *Simulation, v float64) {
	for i := range s.state {
		s.state[i] = v
	}
}

func TestStepKeepsStateInRange(t *testing.T) {
	s := smallSim()
	for i := 0; i < 20; i++ {
		s.Step()
	}
	assert.Equal(t, 20, s.Steps())
	for _, v := range s.state {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestSameSeedSameTrajectory(t *testing.T) {
	a, b := smallSim(), smallSim()
	for i := 0; i < 5; i++ {
		a.Step()
		b.Step()
	}
	assert.Equal(t, a.Summary(), b.Summary())
}

func TestSummary(t *testing.T) {
	sm := summarize([]float64{0, 1, 0, 1}, 7)
	assert.Equal(t, 7, sm.Step)
	assert.InDelta(t, 0.5, sm.Mean, 1e-9)
	assert.InDelta(t, 0.25, sm.Variance, 1e-9)
	assert.InDelta(t, 0.5, sm.Std, 1e-9)
	assert.Equal(t, 2, sm.Active)
	// 0*log(1e-8) and 1*log(1) both vanish
	assert.InDelta(t, 0, sm.Entropy, 1e-9)

	sm = summarize([]float64{0.5, 0.5}, 0)
	assert.Equal(t, 0, sm.Active)
	assert.InDelta(t, 0.5*0.6931471805599453, sm.Entropy, 1e-9)

	assert.Equal(t, Summary{Step: 3}, summarize(nil, 3))
}

func TestInsights(t *testing.T) {
	tests := []struct {
		sm   Summary
		want []string
	}{
		{Summary{Mean: 0.7, Variance: 0.01}, []string{InsightHighActivation}},
		{Summary{Mean: 0.2, Variance: 0.2}, []string{InsightLowActivation, InsightHighVariance}},
		{Summary{Mean: 0.5, Variance: 0.15}, []string{InsightHighVariance}},
		{Summary{Mean: 0.5, Variance: 0.05}, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.sm.Insights())
	}
}

func TestBoost(t *testing.T) {
	s := smallSim()
	before := s.ParamMean(ParamHierarchy)
	s.Boost(ParamHierarchy, 1.01)
	assert.InDelta(t, before*1.01, s.ParamMean(ParamHierarchy), 1e-9)

	// out of range is ignored
	s.Boost(paramDim, 2)
	assert.Equal(t, 0.0, s.ParamMean(-1))
}

type fakeAsker struct {
	mu    sync.Mutex
	ready bool
	err   error
	asked []string
}

func (f *fakeAsker) Ask(ctx context.Context, content string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.asked = append(f.asked, content)
	return uuid.New(), nil
}

func (f *fakeAsker) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func question(content string) *protocol.Message {
	return protocol.New("rasa_bot", protocol.Question, content, nil)
}

func TestOnQuestion(t *testing.T) {
	sim := smallSim()
	fill(sim, 0.75)
	a := NewAgent(sim, AgentConfig{})
	ctx := context.Background()

	tests := map[string]string{
		"Any PATTERNS today?": "Detecting complex emergent patterns in the fractal space.",
		"how do you learn":    "Continuous meta-learning is active across all dimensions.",
		"what is your state":  "System is evolving with 216 activated nodes.",
		"tell me something":   "Processing through recursive fractal dynamics.",
	}
	for q, tail := range tests {
		reply, err := a.OnQuestion(ctx, question(q))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(reply, "Fractal AI Analysis: Current system state shows mean=0.750, std=0.000, entropy="), reply)
		assert.True(t, strings.HasSuffix(reply, tail), reply)
	}
	assert.Len(t, a.CommunicationLog(), 8)
}

func TestOnAnswerBoostsParams(t *testing.T) {
	sim := smallSim()
	a := NewAgent(sim, AgentConfig{})
	ctx := context.Background()

	hier := sim.ParamMean(ParamHierarchy)
	nh := sim.ParamMean(ParamNeighborhood)

	require.NoError(t, a.OnAnswer(ctx, question("Math is great")))
	assert.InDelta(t, hier*1.01, sim.ParamMean(ParamHierarchy), 1e-9)

	require.NoError(t, a.OnAnswer(ctx, question("be creative")))
	assert.InDelta(t, nh*1.02, sim.ParamMean(ParamNeighborhood), 1e-9)

	require.NoError(t, a.OnAck(ctx, question("ok")))
	assert.Equal(t, []string{"Answer received: Math is great", "Answer received: be creative", "Ack: ok"}, a.CommunicationLog())
}

func TestObserveAsksAboutInsight(t *testing.T) {
	sim := smallSim()
	fill(sim, 0.1)
	a := NewAgent(sim, AgentConfig{AskProbability: 1})
	asker := &fakeAsker{ready: true}
	a.SetAsker(asker)

	a.observe(context.Background())

	require.Len(t, asker.asked, 1)
	assert.Equal(t, "I'm observing: "+InsightLowActivation+". What educational applications could this suggest?", asker.asked[0])
	st := a.Stats()
	assert.Equal(t, 1, st.QuestionsAsked)
	assert.Equal(t, []string{InsightLowActivation}, st.LastInsights)
}

func TestStatsIncludeRelay(t *testing.T) {
	a := NewAgent(smallSim(), AgentConfig{})
	assert.Nil(t, a.Stats().Relay)

	a.SetAsker(&fakeAsker{})
	assert.Nil(t, a.Stats().Relay)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	n := node.New(node.Config{
		Name:          "fractal_ai",
		Peer:          "rasa_bot",
		PeerURL:       "ws://127.0.0.1:1/",
		AnswerTimeout: time.Second,
		DedupCapacity: 10,
	}, l, a)
	a.SetAsker(n)

	st := a.Stats()
	require.NotNil(t, st.Relay)
	assert.Equal(t, "fractal_ai", st.Relay.Name)
	assert.Equal(t, "idle", st.Relay.State)
	assert.False(t, st.Relay.OutboundConnected)
}

func TestObserveHoldsBack(t *testing.T) {
	sim := smallSim()
	fill(sim, 0.1)
	ctx := context.Background()

	// never asks with zero probability
	a := NewAgent(sim, AgentConfig{AskProbability: 0})
	asker := &fakeAsker{ready: true}
	a.SetAsker(asker)
	a.observe(ctx)
	assert.Empty(t, asker.asked)

	// nor while the gate is busy
	a = NewAgent(sim, AgentConfig{AskProbability: 1})
	busy := &fakeAsker{}
	a.SetAsker(busy)
	a.observe(ctx)
	assert.Empty(t, busy.asked)

	// a failed ask is not counted
	a = NewAgent(sim, AgentConfig{AskProbability: 1})
	a.SetAsker(&fakeAsker{ready: true, err: errors.New("down")})
	a.observe(ctx)
	assert.Equal(t, 0, a.Stats().QuestionsAsked)
}

func TestLogIsBounded(t *testing.T) {
	a := NewAgent(smallSim(), AgentConfig{LogSize: 3})
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, a.OnAck(context.Background(), question(s)))
	}
	assert.Equal(t, []string{"Ack: c", "Ack: d", "Ack: e"}, a.CommunicationLog())
}

func TestTickObservesEveryN(t *testing.T) {
	sim := smallSim()
	a := NewAgent(sim, AgentConfig{InsightEvery: 3, AskProbability: 1})
	asker := &fakeAsker{}
	a.SetAsker(asker)

	for i := 0; i < 6; i++ {
		require.NoError(t, a.Tick(context.Background()))
	}
	assert.Equal(t, 6, sim.Steps())
	assert.Equal(t, 6, a.Stats().Step)
}
