// Package console is a terminal chat with the chatbot node. Typed lines go
// to the bot, the transcript (peer traffic included) refreshes live.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"teacher1/chatbot"
	"teacher1/datamodel/transcript"
	"teacher1/speech"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	refreshInterval = time.Second
	timelineEntries = 200
)

type Chat interface {
	Utter(ctx context.Context, text string) (chatbot.Utterance, error)
	Transcript() *transcript.Transcript
}

var _ Chat = (*chatbot.Bot)(nil)

type Options struct {
	Title      string
	Speaker    speech.Speaker // reads bot replies aloud, may be nil
	LinkStatus func() string  // relay link state for the header, may be nil
	AltScreen  bool
}

type utterDoneMsg struct {
	u   chatbot.Utterance
	err error
}

type spokenMsg struct{ err error }

type tickMsg time.Time

type theme struct {
	root    lipgloss.Style
	header  lipgloss.Style
	panel   lipgloss.Style
	input   lipgloss.Style
	status  lipgloss.Style
	errText lipgloss.Style
	muted   lipgloss.Style
	speaker map[string]lipgloss.Style
}

func newTheme() theme {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	muted := lipgloss.Color("#9ca3d8")

	return theme{
		root: lipgloss.NewStyle().Padding(0, 1),
		header: lipgloss.NewStyle().
			Foreground(pink).
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue),
		input: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mint),
		status:  lipgloss.NewStyle().Foreground(blue).Bold(true),
		errText: lipgloss.NewStyle().Foreground(pink).Bold(true),
		muted:   lipgloss.NewStyle().Foreground(muted),
		speaker: map[string]lipgloss.Style{
			transcript.SpeakerUser: lipgloss.NewStyle().Foreground(mint).Bold(true),
			transcript.SpeakerBot:  lipgloss.NewStyle().Foreground(pink).Bold(true),
			transcript.SpeakerPeer: lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd166")).Bold(true),
		},
	}
}

type model struct {
	ctx  context.Context
	chat Chat
	opts Options

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	theme    theme

	width, height int
	busy          bool
	statusLine    string
	lastErr       error
	rendered      int
}

func newModel(ctx context.Context, chat Chat, opts Options) model {
	if opts.Title == "" {
		opts.Title = "Teacher1 Chat"
	}
	if opts.Speaker == nil {
		opts.Speaker = speech.Nop{}
	}

	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 500
	input.Placeholder = "Say something to the chatbot. /quit to leave."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true

	return model{
		ctx:        ctx,
		chat:       chat,
		opts:       opts,
		input:      input,
		timeline:   timeline,
		spinner:    sp,
		theme:      newTheme(),
		statusLine: "ready",
		rendered:   -1,
	}
}

func tickEvery(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, tickEvery(refreshInterval))
}

func (m model) utterCmd(text string) tea.Cmd {
	return func() tea.Msg {
		u, err := m.chat.Utter(m.ctx, text)
		return utterDoneMsg{u: u, err: err}
	}
}

func (m model) speakCmd(text string) tea.Cmd {
	if _, ok := m.opts.Speaker.(speech.Nop); ok {
		return nil
	}
	return func() tea.Msg {
		return spokenMsg{err: m.opts.Speaker.Speak(m.ctx, text)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refresh(true)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tickMsg:
		m.refresh(false)
		cmds = append(cmds, tickEvery(refreshInterval))
	case utterDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.lastErr = msg.err
			m.statusLine = "send failed"
			break
		}
		m.lastErr = nil
		switch {
		case msg.u.Forwarded:
			m.statusLine = "answered · forwarded to the AI"
		case msg.u.Reply.Fallback:
			m.statusLine = "answered from templates"
		default:
			m.statusLine = "answered"
		}
		m.refresh(true)
		if cmd := m.speakCmd(msg.u.Reply.Text); cmd != nil {
			cmds = append(cmds, cmd)
		}
	case spokenMsg:
		if msg.err != nil {
			m.lastErr = msg.err
		}
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			return m, cmd
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy {
				return m, nil
			}
			if text == "/quit" {
				return m, tea.Quit
			}
			m.input.Reset()
			m.busy = true
			m.statusLine = "thinking"
			return m, m.utterCmd(text)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) resize() {
	w := max(40, m.width-4)
	m.input.Width = max(20, w-6)
	m.timeline.Width = w - 2
	// header, input and footer take 8 rows
	m.timeline.Height = max(3, m.height-10)
}

// refresh re-renders the timeline when the transcript grew or force is set.
func (m *model) refresh(force bool) {
	n := m.chat.Transcript().Len()
	if !force && n == m.rendered {
		return
	}
	m.rendered = n
	m.timeline.SetContent(m.renderTimeline())
	m.timeline.GotoBottom()
}

func (m *model) renderTimeline() string {
	entries := m.chat.Transcript().Tail(timelineEntries)
	if len(entries) == 0 {
		return m.theme.muted.Render("No messages yet. Say hello!")
	}
	width := max(24, m.timeline.Width-2)
	var b strings.Builder
	for _, e := range entries {
		style, ok := m.theme.speaker[e.Speaker]
		if !ok {
			style = m.theme.muted
		}
		label := fmt.Sprintf("%s [%s]", e.Time.Local().Format("15:04:05"), e.Speaker)
		if e.Note != "" {
			label += " " + m.theme.muted.Render(e.Note)
		}
		b.WriteString(style.Render(label))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(e.Text))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func (m model) View() string {
	title := m.opts.Title
	if m.opts.LinkStatus != nil {
		title += " · link " + m.opts.LinkStatus()
	}
	header := m.theme.header.Render(title)
	timeline := m.theme.panel.Render(m.timeline.View())
	input := m.theme.input.Render(m.input.View())

	status := m.theme.status.Render(m.statusLine)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	if m.lastErr != nil {
		status += "  " + m.theme.errText.Render(m.lastErr.Error())
	}
	footer := status + "  " + m.theme.muted.Render("enter send · pgup/pgdown scroll · esc quit")

	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, header, timeline, input, footer))
}

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, chat Chat, opts Options) error {
	progOpts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithMouseCellMotion()}
	if opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	p := tea.NewProgram(newModel(ctx, chat, opts), progOpts...)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}
