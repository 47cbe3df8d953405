package exchange

import (
	"time"

	"github.com/google/uuid"
)

type Direction uint8

const (
	Inbound Direction = iota + 1
	Outbound
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "in"
	case Outbound:
		return "out"
	}
	return "?"
}

// Entry is one relay message as seen by a node, numbered in local arrival order.
type Entry struct {
	SequenceNumber uint64     `cbor:"1,keyasint,omitempty"` // Local journal sequence number
	MessageID      uuid.UUID  `cbor:"2,keyasint"`
	Node           string     `cbor:"3,keyasint,omitempty"` // Node that journaled the message
	Direction      Direction  `cbor:"4,keyasint,omitempty"`
	Sender         string     `cbor:"5,keyasint,omitempty"`
	Type           string     `cbor:"6,keyasint,omitempty"`
	Content        string     `cbor:"7,keyasint,omitempty"`
	InReplyTo      *uuid.UUID `cbor:"8,keyasint,omitempty"`
	Timestamp      time.Time  `cbor:"9,keyasint,omitempty"`
}

// Journal is an append-only record of relay traffic.
type Journal interface {
	// Append stores the entry under a new sequence number. Appending a message id that
	// is already journaled returns the stored entry unchanged.
	Append(*Entry) (*Entry, error)

	// Get returns the entry for a message id.
	Get(uuid.UUID) (*Entry, error)

	// EnumerateBySeq returns entries with start <= seq < end.
	EnumerateBySeq(start uint64, end uint64) ([]*Entry, error)

	// GetSeq returns the last assigned sequence number.
	GetSeq() uint64
}
