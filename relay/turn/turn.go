// Package turn implements the per-node turn-taking gate: a node waits for the answer
// to its outstanding question before it originates another one.
package turn

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	log "github.com/sirupsen/logrus"
)

type State int

const (
	Idle State = iota
	AwaitingReply
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingReply:
		return "awaiting_reply"
	}
	return "unknown"
}

var ErrBusy = errors.New("a question is already awaiting its answer")

// DefaultTimeout bounds how long a node waits for an answer.
const DefaultTimeout = 30 * time.Second

type Gate struct {
	mu          sync.Mutex
	state       State
	outstanding uuid.UUID
	since       time.Time
	timer       *time.Timer
	timeout     time.Duration

	// OnTimeout is called, outside the lock, with the id whose answer never came.
	OnTimeout func(id uuid.UUID)
}

func New(timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{timeout: timeout}
}

// Begin moves the gate from Idle to AwaitingReply for question id.
func (g *Gate) Begin(id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Idle {
		return ErrBusy
	}

	g.state = AwaitingReply
	g.outstanding = id
	g.since = time.Now()
	g.timer = time.AfterFunc(g.timeout, func() { g.expire(id) })
	return nil
}

// Resolve returns the gate to Idle if inReplyTo is the outstanding question.
// Answers to anything else leave the state untouched and report false.
func (g *Gate) Resolve(inReplyTo uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != AwaitingReply || g.outstanding != inReplyTo {
		return false
	}
	g.reset()
	return true
}

// Abort returns the gate to Idle if id is outstanding, used when sending the question failed.
func (g *Gate) Abort(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == AwaitingReply && g.outstanding == id {
		g.reset()
	}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Outstanding returns the id of the question being waited on, if any.
func (g *Gate) Outstanding() (uuid.UUID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.outstanding, g.state == AwaitingReply
}

// Stop cancels a pending timeout and returns to Idle.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset()
}

func (g *Gate) expire(id uuid.UUID) {
	g.mu.Lock()
	// a newer question may have replaced the one this timer was armed for
	if g.state != AwaitingReply || g.outstanding != id {
		g.mu.Unlock()
		return
	}
	waited := time.Since(g.since)
	g.reset()
	cb := g.OnTimeout
	g.mu.Unlock()

	log.Warnf("turn: no answer to %s after %v, returning to idle", id, waited.Round(time.Millisecond))
	if cb != nil {
		cb(id)
	}
}

// reset must be called with g.mu held.
func (g *Gate) reset() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.state = Idle
	g.outstanding = uuid.Nil
	g.since = time.Time{}
}
