// Package speech reads replies aloud and turns spoken input into text by
// running external speech tools. Without them it degrades to no-ops.
package speech

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	ErrNoInput         = errors.New("speech: no input available")
	ErrNotUnderstood   = errors.New("speech: could not understand input")
	ErrCommandTimedOut = errors.New("speech: command timed out")
)

const defaultTimeout = 30 * time.Second

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Nop is used when no speech tools are available.
type Nop struct{}

var (
	_ Speaker  = Nop{}
	_ Listener = Nop{}
	_ Speaker  = (*CommandSpeaker)(nil)
	_ Listener = (*CommandListener)(nil)
	_ Listener = (*ReaderListener)(nil)
)

func (Nop) Speak(ctx context.Context, text string) error {
	return nil
}

func (Nop) Listen(ctx context.Context) (string, error) {
	return "", ErrNoInput
}

// CommandSpeaker runs a TTS binary with the text as its last argument,
// e.g. "espeak -s 140".
type CommandSpeaker struct {
	path    string
	args    []string
	timeout time.Duration

	mu sync.Mutex // one utterance at a time
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := run(ctx, s.timeout, s.path, append(append([]string(nil), s.args...), text)...)
	return err
}

// CommandListener runs a recognizer that prints what it heard on stdout.
type CommandListener struct {
	path    string
	args    []string
	timeout time.Duration
}

func (l *CommandListener) Listen(ctx context.Context) (string, error) {
	out, err := run(ctx, l.timeout, l.path, l.args...)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", ErrNotUnderstood
	}
	return out, nil
}

// ReaderListener treats each line of r as one spoken utterance.
type ReaderListener struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
}

func NewReaderListener(r io.Reader) *ReaderListener {
	return &ReaderListener{scanner: bufio.NewScanner(r)}
}

func (l *ReaderListener) Listen(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.scanner.Scan() {
		if err := l.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrNoInput
	}
	line := strings.TrimSpace(l.scanner.Text())
	if line == "" {
		return "", ErrNotUnderstood
	}
	return line, nil
}

func run(ctx context.Context, timeout time.Duration, path string, args ...string) (string, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrCommandTimedOut
		}
		errText := strings.TrimSpace(stderr.String())
		if errText == "" {
			errText = err.Error()
		}
		return "", fmt.Errorf("speech: %s failed: %s", path, errText)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func resolve(command string) (string, []string, bool) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil, false
	}
	path, err := exec.LookPath(parts[0])
	if err != nil {
		log.Warnf("Speech: %s not found, speech disabled: %v", parts[0], err)
		return "", nil, false
	}
	return path, parts[1:], true
}

// NewSpeaker returns a CommandSpeaker for command, or Nop when speech is
// disabled or the binary cannot be found.
func NewSpeaker(enabled bool, command string, timeout time.Duration) Speaker {
	if !enabled {
		return Nop{}
	}
	path, args, ok := resolve(command)
	if !ok {
		return Nop{}
	}
	log.Infof("Speech: speaking through %s", path)
	return &CommandSpeaker{path: path, args: args, timeout: timeout}
}

// NewListener returns a CommandListener for command, or Nop.
func NewListener(enabled bool, command string, timeout time.Duration) Listener {
	if !enabled {
		return Nop{}
	}
	path, args, ok := resolve(command)
	if !ok {
		return Nop{}
	}
	return &CommandListener{path: path, args: args, timeout: timeout}
}
