// Package node runs one side of the question/answer relay: it owns the transport pair,
// deduplicates and dispatches inbound messages, acknowledges them and enforces turn-taking
// for the questions it originates.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"teacher1/datamodel/exchange"
	"teacher1/net/wsrelay"
	"teacher1/relay/dedup"
	"teacher1/relay/protocol"
	"teacher1/relay/turn"
	"teacher1/telemetry"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sirupsen/logrus"
)

var ErrAwaitingReply = errors.New("node is awaiting a reply")

// DefaultFallbackReply answers a question whose handler failed.
const DefaultFallbackReply = "I'm having trouble processing that right now. Could you try asking in a different way?"

type Config struct {
	Name          string
	Peer          string // expected name of the peer; empty accepts any dialer
	PeerURL       string // ws://host:port/ of the peer's server
	AnswerTimeout time.Duration
	DedupCapacity int
	DedupMaxAge   time.Duration
	Client        wsrelay.ClientOptions
	FallbackReply string
}

type Option func(*Node)

// WithJournal records every accepted and sent message.
func WithJournal(j exchange.Journal) Option {
	return func(n *Node) { n.journal = j }
}

// WithStatusListener is notified of link changes of either role.
func WithStatusListener(f func(role wsrelay.Role, s wsrelay.Status)) Option {
	return func(n *Node) { n.listeners = append(n.listeners, f) }
}

type Node struct {
	name     string
	peer     string
	fallback string
	handlers Handlers

	cache  *dedup.Cache
	gate   *turn.Gate
	server *wsrelay.Server
	client *wsrelay.Client

	journal   exchange.Journal
	listeners []func(wsrelay.Role, wsrelay.Status)

	mu   sync.Mutex
	link wsrelay.Status // last status reported by the client role

	stats counters
	wg    sync.WaitGroup
	log   *logrus.Entry
}

// New creates a node serving on listener and dialing cfg.PeerURL.
func New(cfg Config, listener net.Listener, h Handlers, opts ...Option) *Node {
	if h == nil {
		h = HandlerFuncs{}
	}
	n := &Node{
		name:     cfg.Name,
		peer:     cfg.Peer,
		fallback: cfg.FallbackReply,
		handlers: h,
		cache:    dedup.New(cfg.DedupCapacity, cfg.DedupMaxAge),
		gate:     turn.New(cfg.AnswerTimeout),
		link:     wsrelay.StatusDisconnected,
		log:      logrus.WithField("node", cfg.Name),
	}
	if n.fallback == "" {
		n.fallback = DefaultFallbackReply
	}

	n.server = wsrelay.NewServer(listener, cfg.Peer, n.handleFrame, n.handleStatus)
	n.client = wsrelay.NewClient(cfg.PeerURL, cfg.Name, cfg.Client, n.handleFrame, n.handleStatus)

	n.gate.OnTimeout = func(id uuid.UUID) {
		n.stats.timeouts.Add(1)
		telemetry.RelayErrors.WithLabelValues(n.name, "timeout").Inc()
		telemetry.SetAwaiting(n.name, false)
	}

	for _, o := range opts {
		o(n)
	}

	telemetry.SetConnected(n.name, wsrelay.RoleServer.String(), false)
	telemetry.SetConnected(n.name, wsrelay.RoleClient.String(), false)
	telemetry.SetAwaiting(n.name, false)

	return n
}

func (n *Node) Name() string {
	return n.name
}

func (n *Node) Addr() net.Addr {
	return n.server.Addr()
}

func (n *Node) State() turn.State {
	return n.gate.State()
}

// LinkStatus reports the outbound link as last seen by the client role.
func (n *Node) LinkStatus() wsrelay.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.link
}

// Ready reports whether a question may be originated now.
func (n *Node) Ready() bool {
	return n.gate.State() == turn.Idle && (n.client.Conn() != nil || n.server.Conn() != nil)
}

// Run serves and dials until ctx is cancelled. Cancellation is a clean shutdown.
func (n *Node) Run(ctx context.Context) error {
	wg, cctx := errgroup.WithContext(ctx)

	wg.Go(func() error {
		return n.server.Serve(cctx)
	})

	wg.Go(func() error {
		return n.client.Run(cctx)
	})

	// Serve returns after its read loops, so nothing adds to n.wg past this point
	err := wg.Wait()
	n.wg.Wait()
	n.gate.Stop()
	telemetry.SetAwaiting(n.name, false)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Ask sends a question to the peer. It fails with ErrAwaitingReply while a previous
// question is unanswered, and with a transport error if no link can carry it.
func (n *Node) Ask(ctx context.Context, content string) (uuid.UUID, error) {
	m := protocol.New(n.name, protocol.Question, content, nil)

	if err := n.gate.Begin(m.ID); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrAwaitingReply, err)
	}
	telemetry.SetAwaiting(n.name, true)

	if err := n.send(ctx, nil, m); err != nil {
		n.gate.Abort(m.ID)
		telemetry.SetAwaiting(n.name, false)
		return uuid.Nil, err
	}

	n.log.WithField("message_id", m.ID).Infof("Asked: %s", m.Content)
	return m.ID, nil
}

// send writes m on prefer if given, otherwise on the outbound link, then the inbound one.
// With no live link it dials one round within ctx.
func (n *Node) send(ctx context.Context, prefer *wsrelay.Conn, m *protocol.Message) error {
	raw, err := protocol.Encode(m)
	if err != nil {
		return err
	}

	var lastErr error = wsrelay.ErrNotConnected
	for _, conn := range []*wsrelay.Conn{prefer, n.client.Conn(), n.server.Conn()} {
		if conn == nil {
			continue
		}
		if err := conn.Send(ctx, raw); err != nil {
			lastErr = err
			n.log.Debugf("send %s on %s link failed: %v", m, conn.Role(), err)
			continue
		}
		n.sent(m)
		return nil
	}

	if errors.Is(lastErr, wsrelay.ErrNotConnected) && ctx.Err() == nil {
		conn, err := n.client.Connect(ctx)
		if err == nil {
			if err = conn.Send(ctx, raw); err == nil {
				n.sent(m)
				return nil
			}
		}
		lastErr = err
	}

	n.stats.sendErrors.Add(1)
	telemetry.RelayErrors.WithLabelValues(n.name, "send").Inc()
	return fmt.Errorf("send %s: %w", m, lastErr)
}

func (n *Node) sent(m *protocol.Message) {
	n.stats.sent.Add(1)
	telemetry.RelayMessages.WithLabelValues(n.name, "out", m.Type.String()).Inc()
	n.record(exchange.Outbound, m)
}

func (n *Node) record(dir exchange.Direction, m *protocol.Message) {
	if n.journal == nil {
		return
	}
	_, err := n.journal.Append(&exchange.Entry{
		MessageID: m.ID,
		Node:      n.name,
		Direction: dir,
		Sender:    m.Sender,
		Type:      m.Type.String(),
		Content:   m.Content,
		InReplyTo: m.InReplyTo,
		Timestamp: m.Timestamp,
	})
	if err != nil {
		n.log.Warnf("journal %s: %v", m, err)
	}
}

func (n *Node) handleFrame(ctx context.Context, conn *wsrelay.Conn, data []byte) {
	n.stats.received.Add(1)

	m, err := protocol.Decode(data)
	if err != nil {
		n.stats.decodeErrors.Add(1)
		telemetry.RelayErrors.WithLabelValues(n.name, "decode").Inc()
		n.log.WithField("remote", conn.RemoteAddr()).Warnf("Dropping frame: %v", err)
		return
	}

	if n.cache.CheckAndRecord(m.ID) {
		n.stats.duplicates.Add(1)
		telemetry.RelayErrors.WithLabelValues(n.name, "duplicate").Inc()
		n.log.WithField("message_id", m.ID).Debugf("Dropping duplicate %s", m.Type)
		return
	}

	telemetry.RelayMessages.WithLabelValues(n.name, "in", m.Type.String()).Inc()
	n.record(exchange.Inbound, m)

	entry := n.log.WithFields(logrus.Fields{
		"message_id": m.ID,
		"sender":     m.Sender,
		"type":       m.Type,
	})

	switch m.Type {
	case protocol.Question:
		entry.Infof("Question: %s", m.Content)
		n.handleQuestion(ctx, conn, m)
	case protocol.Answer:
		entry.Infof("Answer: %s", m.Content)
		n.handleAnswer(ctx, conn, m)
	case protocol.Ack:
		entry.Debugf("Ack: %s", m.Content)
		n.invoke(func() error { return n.handlers.OnAck(ctx, m) }, m)
	}
}

func (n *Node) handleQuestion(ctx context.Context, conn *wsrelay.Conn, q *protocol.Message) {
	ack := q.Reply(n.name, protocol.Ack, "Question received: "+q.ID.String())
	if err := n.send(ctx, conn, ack); err != nil {
		n.log.Warnf("ack for %s: %v", q.ID, err)
	}

	// answering may be slow; keep reading the link meanwhile
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		var reply string
		err := n.invoke(func() error {
			var err error
			reply, err = n.handlers.OnQuestion(ctx, q)
			return err
		}, q)
		if err != nil {
			reply = n.fallback
		}
		if reply == "" {
			return
		}

		if err := n.send(ctx, conn, q.Reply(n.name, protocol.Answer, reply)); err != nil {
			n.log.Warnf("answer to %s: %v", q.ID, err)
		}
	}()
}

func (n *Node) handleAnswer(ctx context.Context, conn *wsrelay.Conn, a *protocol.Message) {
	if n.gate.Resolve(*a.InReplyTo) {
		telemetry.SetAwaiting(n.name, false)
		n.log.WithField("message_id", *a.InReplyTo).Debug("Question answered, back to idle")
	}

	ack := a.Reply(n.name, protocol.Ack, "Answer received: "+a.ID.String())
	if err := n.send(ctx, conn, ack); err != nil {
		n.log.Warnf("ack for %s: %v", a.ID, err)
	}

	n.invoke(func() error { return n.handlers.OnAnswer(ctx, a) }, a)
}

// invoke runs a handler, turning errors and panics into counted handler errors.
func (n *Node) invoke(f func() error, m *protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			n.log.Errorf("%s handler panicked: %v\n%s", m.Type, r, debug.Stack())
		}
		if err != nil {
			n.stats.handlerErrors.Add(1)
			telemetry.RelayErrors.WithLabelValues(n.name, "handler").Inc()
			n.log.WithField("message_id", m.ID).Warnf("%s handler failed: %v", m.Type, err)
		}
	}()
	return f()
}

func (n *Node) handleStatus(role wsrelay.Role, s wsrelay.Status, err error) {
	telemetry.SetConnected(n.name, role.String(), s == wsrelay.StatusConnected)

	if role == wsrelay.RoleClient {
		n.mu.Lock()
		n.link = s
		n.mu.Unlock()
	}

	entry := n.log.WithField("role", role)
	switch s {
	case wsrelay.StatusConnected:
		entry.Info("Link up")
	case wsrelay.StatusUnavailable:
		entry.Warnf("Peer unavailable: %v", err)
	default:
		entry.Infof("Link %s", s)
	}

	for _, f := range n.listeners {
		f(role, s)
	}
}
