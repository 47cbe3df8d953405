package console

import (
	"context"
	"errors"
	"strings"
	"testing"

	"teacher1/chatbot"
	"teacher1/datamodel/transcript"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	t   *transcript.Transcript
	err error
}

func (f *fakeChat) Utter(ctx context.Context, text string) (chatbot.Utterance, error) {
	if f.err != nil {
		return chatbot.Utterance{}, f.err
	}
	f.t.Add(transcript.SpeakerUser, text, "")
	reply := chatbot.Reply{Text: "Great counting!", Fallback: true}
	f.t.Add(transcript.SpeakerBot, reply.Text, "fallback")
	return chatbot.Utterance{Reply: reply}, nil
}

func (f *fakeChat) Transcript() *transcript.Transcript {
	return f.t
}

func send(t *testing.T, m tea.Model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	require.True(t, ok)
	return nm, cmd
}

func typeText(t *testing.T, m model, text string) model {
	t.Helper()
	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func TestEnterSendsUtterance(t *testing.T) {
	chat := &fakeChat{t: transcript.New("rasa_bot")}
	m := newModel(context.Background(), chat, Options{LinkStatus: func() string { return "connected" }})
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m = typeText(t, m, "one two three")
	assert.Equal(t, "one two three", m.input.Value())

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Empty(t, m.input.Value())

	// a second enter while busy is ignored
	m = typeText(t, m, "again")
	_, again := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, again)

	done, ok := cmd().(utterDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)

	m, _ = send(t, m, done)
	assert.False(t, m.busy)
	assert.Equal(t, "answered from templates", m.statusLine)

	timeline := m.renderTimeline()
	assert.Contains(t, timeline, "one two three")
	assert.Contains(t, timeline, "Great counting!")
	assert.Contains(t, timeline, "[bot]")

	view := m.View()
	assert.Contains(t, view, "Teacher1 Chat · link connected")
}

func TestUtterErrorShownInStatus(t *testing.T) {
	chat := &fakeChat{t: transcript.New("rasa_bot"), err: errors.New("relay down")}
	m := newModel(context.Background(), chat, Options{})

	m = typeText(t, m, "hi")
	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = send(t, m, cmd())

	assert.Equal(t, "send failed", m.statusLine)
	assert.True(t, strings.Contains(m.View(), "relay down"))
}

func TestQuitCommands(t *testing.T) {
	chat := &fakeChat{t: transcript.New("rasa_bot")}
	m := newModel(context.Background(), chat, Options{})

	_, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	m = typeText(t, m, "/quit")
	_, cmd = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestEmptyTranscriptHint(t *testing.T) {
	chat := &fakeChat{t: transcript.New("rasa_bot")}
	m := newModel(context.Background(), chat, Options{})
	assert.Contains(t, m.renderTimeline(), "No messages yet")
}
