package chatbot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"teacher1/chatbot/generator"
	"teacher1/datastore/flatfs"
	"teacher1/net/wsrelay"
	"teacher1/relay/protocol"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func (f *fakeAsker) questions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.asked...)
}

func newBot(cfg BotConfig) (*Bot, *fakeAsker) {
	b := NewBot("rasa_bot", NewResponder(nil, 7), cfg, nil)
	a := &fakeAsker{ready: true}
	b.SetAsker(a)
	return b, a
}

func peerMessage(typ protocol.Type, content string) *protocol.Message {
	var reply *uuid.UUID
	if typ != protocol.Question {
		id := uuid.New()
		reply = &id
	}
	return protocol.New("fractal_ai", typ, content, reply)
}

func TestUtterForwardsWhenIdle(t *testing.T) {
	b, a := newBot(BotConfig{})
	ctx := context.Background()

	u, err := b.Utter(ctx, "  can we count to ten?  ")
	require.NoError(t, err)
	assert.True(t, u.Forwarded)
	assert.NotEqual(t, uuid.Nil, u.QuestionID)
	assert.Equal(t, TopicMath, u.Reply.Topic)
	assert.Equal(t, []string{"can we count to ten?"}, a.questions())

	entries := b.Transcript().Tail(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "user", entries[0].Speaker)
	assert.Equal(t, "fallback", entries[1].Note)
	assert.Equal(t, 1, b.Stats().QuestionsAsked)
}

func TestUtterStaysLocal(t *testing.T) {
	ctx := context.Background()

	b, a := newBot(BotConfig{})
	a.ready = false
	u, err := b.Utter(ctx, "hello")
	require.NoError(t, err)
	assert.False(t, u.Forwarded)
	assert.NotEmpty(t, u.Reply.Text)

	// filtered input is never forwarded
	b, a = newBot(BotConfig{})
	u, err = b.Utter(ctx, "monsters!")
	require.NoError(t, err)
	assert.False(t, u.Forwarded)
	assert.Empty(t, a.questions())

	// a failing relay does not fail the utterance
	b, a = newBot(BotConfig{})
	a.err = errors.New("down")
	u, err = b.Utter(ctx, "hello")
	require.NoError(t, err)
	assert.False(t, u.Forwarded)

	_, err = b.Utter(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyUtterance)
}

func TestOnQuestionEnhances(t *testing.T) {
	b, _ := newBot(BotConfig{})
	ctx := context.Background()

	reply, err := b.OnQuestion(ctx, peerMessage(protocol.Question, "I'm observing: High variance patterns emerging - creative phase. What educational applications could this suggest?"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(reply, enhancements[0].text), reply)

	reply, err = b.OnQuestion(ctx, peerMessage(protocol.Question, "how do you teach"))
	require.NoError(t, err)
	assert.Contains(t, educationalResponses[TopicGeneral], reply)

	assert.Equal(t, []string{"question", "answer", "question", "answer"}, notes(b))
}

func TestOnQuestionFallsBackWhenModelOutputRejected(t *testing.T) {
	r := NewResponder(funcGen("That is a scary thought"), 1)
	b := NewBot("rasa_bot", r, BotConfig{}, nil)
	ctx := context.Background()

	reply, err := b.OnQuestion(ctx, peerMessage(protocol.Question, "what is your state"))
	require.NoError(t, err)
	assert.Equal(t, peerFallbacks[2].text, reply)

	reply, err = b.OnQuestion(ctx, peerMessage(protocol.Question, "anything new"))
	require.NoError(t, err)
	assert.Equal(t, defaultPeerReply, reply)
	assert.True(t, b.Stats().ModelLoaded)
}

func TestOnAnswerUpdatesContext(t *testing.T) {
	b, _ := newBot(BotConfig{})
	ctx := context.Background()

	tests := []struct {
		answer string
		topic  string
	}{
		{"Detecting complex emergent patterns", "pattern_recognition"},
		{"Math helps", "mathematics"},
		{"nothing relevant", "mathematics"},
		{"be creative", "creative_thinking"},
	}
	for _, tt := range tests {
		require.NoError(t, b.OnAnswer(ctx, peerMessage(protocol.Answer, tt.answer)))
		assert.Equal(t, tt.topic, b.Stats().EducationalContext.CurrentTopic)
	}
	assert.Equal(t, "beginner", b.Stats().EducationalContext.DifficultyLevel)

	require.NoError(t, b.OnAck(ctx, peerMessage(protocol.Ack, "Question received")))
	log := b.CommunicationLog()
	assert.Equal(t, "AI Ack: Question received", log[len(log)-1])
}

func TestAskProactiveRoundRobin(t *testing.T) {
	b, a := newBot(BotConfig{})
	ctx := context.Background()

	for i := 0; i < len(proactiveQuestions)+1; i++ {
		require.NoError(t, b.AskProactive(ctx))
	}
	asked := a.questions()
	require.Len(t, asked, len(proactiveQuestions)+1)
	assert.Equal(t, proactiveQuestions[0], asked[0])
	assert.Equal(t, proactiveQuestions[0], asked[len(proactiveQuestions)])

	// not ready: nothing sent, no error
	a.ready = false
	require.NoError(t, b.AskProactive(ctx))
	assert.Len(t, a.questions(), len(proactiveQuestions)+1)
}

func TestGreetOnce(t *testing.T) {
	b, a := newBot(BotConfig{Greet: true})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	b.LinkChanged(wsrelay.RoleClient, wsrelay.StatusDisconnected)
	b.LinkChanged(wsrelay.RoleClient, wsrelay.StatusConnected)
	require.Eventually(t, func() bool { return len(a.questions()) == 1 }, time.Second, 5*time.Millisecond)

	b.LinkChanged(wsrelay.RoleClient, wsrelay.StatusConnected)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{InitialQuestion}, a.questions())

	cancel()
	require.NoError(t, <-done)
}

func TestGreetRetriesAfterFailure(t *testing.T) {
	b, a := newBot(BotConfig{})
	a.err = errors.New("down")
	assert.Error(t, b.Greet(context.Background()))

	a.err = nil
	require.NoError(t, b.Greet(context.Background()))
	require.NoError(t, b.Greet(context.Background()))
	assert.Len(t, a.questions(), 1)
}

func TestRunArchivesTranscript(t *testing.T) {
	store, err := flatfs.New(t.TempDir())
	require.NoError(t, err)

	b := NewBot("rasa_bot", NewResponder(nil, 1), BotConfig{}, store)
	_, err = b.Utter(context.Background(), "hi")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, b.Run(ctx))

	got, err := store.Get(b.Transcript().ID)
	require.NoError(t, err)
	assert.Len(t, got.Entries, 2)
}

func funcGen(out string) generator.Func {
	return func(ctx context.Context, prompt string) (string, error) { return out, nil }
}

func notes(b *Bot) []string {
	var out []string
	for _, e := range b.Transcript().Tail(0) {
		out = append(out, e.Note)
	}
	return out
}
