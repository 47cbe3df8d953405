package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Speakers that appear in a chatbot transcript.
const (
	SpeakerUser = "user"
	SpeakerBot  = "bot"
	SpeakerPeer = "peer"
)

type Entry struct {
	Time    time.Time `cbor:"1,keyasint"`
	Speaker string    `cbor:"2,keyasint"`
	Text    string    `cbor:"3,keyasint"`
	Note    string    `cbor:"4,keyasint,omitempty"` // e.g. "fallback", "question", "answer"
}

// Transcript is the running record of one chatbot session.
type Transcript struct {
	mu sync.Mutex

	ID      uuid.UUID `cbor:"1,keyasint"`
	Node    string    `cbor:"2,keyasint,omitempty"`
	Started time.Time `cbor:"3,keyasint"`
	Entries []Entry   `cbor:"4,keyasint,omitempty"`
}

func New(node string) *Transcript {
	return &Transcript{
		ID:      uuid.New(),
		Node:    node,
		Started: time.Now().UTC(),
	}
}

func (t *Transcript) Add(speaker, text, note string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Entries = append(t.Entries, Entry{
		Time:    time.Now().UTC(),
		Speaker: speaker,
		Text:    text,
		Note:    note,
	})
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Entries)
}

// Snapshot returns a copy safe to store or render while the session continues.
func (t *Transcript) Snapshot() *Transcript {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &Transcript{
		ID:      t.ID,
		Node:    t.Node,
		Started: t.Started,
		Entries: append([]Entry(nil), t.Entries...),
	}
}

// Tail returns the last n entries.
func (t *Transcript) Tail(n int) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 || n > len(t.Entries) {
		n = len(t.Entries)
	}
	return append([]Entry(nil), t.Entries[len(t.Entries)-n:]...)
}

// Store archives finished or in-progress transcripts.
type Store interface {
	Put(*Transcript) error
	Get(uuid.UUID) (*Transcript, error)
	Has(uuid.UUID) (bool, error)
	Enumerate() ([]uuid.UUID, error)
	Delete(uuid.UUID) error
}
