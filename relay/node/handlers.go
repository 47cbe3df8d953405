package node

import (
	"context"

	"teacher1/relay/protocol"
)

// Handlers receive the messages a node accepts from its peer.
// Calls may arrive concurrently; implementations must be safe for concurrent use.
type Handlers interface {
	// OnQuestion returns the answer text. An error or a panic makes the node
	// reply with its fallback text instead. An empty answer sends no reply.
	OnQuestion(ctx context.Context, m *protocol.Message) (string, error)

	// OnAnswer is called after the answer resolved the node's turn gate.
	OnAnswer(ctx context.Context, m *protocol.Message) error

	OnAck(ctx context.Context, m *protocol.Message) error
}

// HandlerFuncs adapts plain functions to Handlers. Nil fields are no-ops.
type HandlerFuncs struct {
	Question func(ctx context.Context, m *protocol.Message) (string, error)
	Answer   func(ctx context.Context, m *protocol.Message) error
	Ack      func(ctx context.Context, m *protocol.Message) error
}

var _ Handlers = HandlerFuncs{}

func (h HandlerFuncs) OnQuestion(ctx context.Context, m *protocol.Message) (string, error) {
	if h.Question == nil {
		return "", nil
	}
	return h.Question(ctx, m)
}

func (h HandlerFuncs) OnAnswer(ctx context.Context, m *protocol.Message) error {
	if h.Answer == nil {
		return nil
	}
	return h.Answer(ctx, m)
}

func (h HandlerFuncs) OnAck(ctx context.Context, m *protocol.Message) error {
	if h.Ack == nil {
		return nil
	}
	return h.Ack(ctx, m)
}
