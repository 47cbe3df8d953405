// Package protocol defines the message envelope exchanged by relay nodes and its JSON codec.
//
// Every message travels as exactly one JSON object per WebSocket text frame:
//
//	{"message_id": "<uuid>", "sender": "fractal_ai", "type": "question",
//	 "content": "...", "in_reply_to": null, "timestamp": "2025-01-01T12:00:00Z"}
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	Question Type = "question"
	Answer   Type = "answer"
	Ack      Type = "ack"
)

// ParseType matches type names case-insensitively.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case Question, Answer, Ack:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

func (t Type) String() string {
	return string(t)
}

// Message is the envelope carried between the two peers.
type Message struct {
	ID        uuid.UUID
	Sender    string
	Type      Type
	Content   string
	InReplyTo *uuid.UUID
	Timestamp time.Time
}

// wire is the on-the-wire layout. Pointers distinguish absent fields from empty ones.
type wire struct {
	ID        *string `json:"message_id"`
	Sender    *string `json:"sender"`
	Type      *string `json:"type"`
	Content   *string `json:"content"`
	InReplyTo *string `json:"in_reply_to"`
	Timestamp *string `json:"timestamp"`
}

// naive ISO-8601 layout without zone, interpreted as UTC
const naiveLayout = "2006-01-02T15:04:05.999999999"

// New creates a message with a fresh random id stamped with the current UTC time.
func New(sender string, typ Type, content string, inReplyTo *uuid.UUID) *Message {
	return &Message{
		ID:        uuid.New(),
		Sender:    sender,
		Type:      typ,
		Content:   content,
		InReplyTo: inReplyTo,
		Timestamp: time.Now().UTC(),
	}
}

// Reply creates a message of the given type replying to m.
func (m *Message) Reply(sender string, typ Type, content string) *Message {
	id := m.ID
	return New(sender, typ, content, &id)
}

func (m *Message) IsReplyTo(id uuid.UUID) bool {
	return m.InReplyTo != nil && *m.InReplyTo == id
}

func (m *Message) String() string {
	return fmt.Sprintf("%s(%s from %s)", m.Type, m.ID, m.Sender)
}

func (m *Message) MarshalJSON() ([]byte, error) {
	id := m.ID.String()
	typ := string(m.Type)
	ts := m.Timestamp.UTC().Format(time.RFC3339Nano)
	w := wire{
		ID:        &id,
		Sender:    &m.Sender,
		Type:      &typ,
		Content:   &m.Content,
		Timestamp: &ts,
	}
	if m.InReplyTo != nil {
		r := m.InReplyTo.String()
		w.InReplyTo = &r
	}
	return json.Marshal(&w)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	msg, err := Decode(data)
	if err != nil {
		return err
	}
	*m = *msg
	return nil
}

// Encode serializes a message. It fails only on an invalid envelope.
func Encode(m *Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	if _, err := ParseType(string(m.Type)); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if m.Sender == "" {
		return nil, fmt.Errorf("encode: empty sender")
	}
	return json.Marshal(m)
}

// EncodeNew builds a fresh message and serializes it.
func EncodeNew(sender string, typ Type, content string, inReplyTo *uuid.UUID) (*Message, []byte, error) {
	m := New(sender, typ, content, inReplyTo)
	b, err := Encode(m)
	if err != nil {
		return nil, nil, err
	}
	return m, b, nil
}

// Decode parses a frame. Any envelope violation yields a *DecodeError and no message.
func Decode(data []byte) (*Message, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, newDecodeError(ErrMalformed, err.Error(), data)
	}

	for _, f := range []struct {
		name string
		v    *string
	}{
		{"message_id", w.ID},
		{"sender", w.Sender},
		{"type", w.Type},
		{"content", w.Content},
		{"timestamp", w.Timestamp},
	} {
		if f.v == nil {
			return nil, newDecodeError(ErrMissingField, f.name, data)
		}
	}

	m := &Message{
		Sender:  *w.Sender,
		Content: *w.Content,
	}

	if m.Sender == "" {
		return nil, newDecodeError(ErrMissingField, "sender", data)
	}

	typ, err := ParseType(*w.Type)
	if err != nil {
		return nil, newDecodeError(ErrUnknownType, *w.Type, data)
	}
	m.Type = typ

	if m.ID, err = uuid.Parse(*w.ID); err != nil {
		return nil, newDecodeError(ErrInvalidID, "message_id: "+err.Error(), data)
	}

	if w.InReplyTo != nil && *w.InReplyTo != "" {
		r, err := uuid.Parse(*w.InReplyTo)
		if err != nil {
			return nil, newDecodeError(ErrInvalidID, "in_reply_to: "+err.Error(), data)
		}
		m.InReplyTo = &r
	}
	if m.Type != Question && m.InReplyTo == nil {
		return nil, newDecodeError(ErrMissingField, "in_reply_to", data)
	}

	if m.Timestamp, err = parseTimestamp(*w.Timestamp); err != nil {
		return nil, newDecodeError(ErrInvalidTimestamp, err.Error(), data)
	}

	return m, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
