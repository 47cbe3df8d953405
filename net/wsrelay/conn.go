// Package wsrelay carries relay frames between two nodes over WebSocket.
//
// Each node runs both roles: a Server that accepts the expected peer and a
// Client that dials the peer and keeps redialing when the link drops.
// Frames are opaque byte slices; one frame is one WebSocket text message.
package wsrelay

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	log "github.com/sirupsen/logrus"
)

// HeaderNode carries the dialing node's name during the handshake.
const HeaderNode = "X-Relay-Node"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 1 << 20
)

var (
	ErrShutdown     = errors.New("connection is shut down")
	ErrUnavailable  = errors.New("peer unavailable")
	ErrNotConnected = errors.New("no connection to peer")
)

type Role int

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

type Status int

const (
	StatusConnected Status = iota
	StatusDisconnected
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// FrameHandler receives every inbound frame together with the connection it arrived on.
type FrameHandler func(ctx context.Context, conn *Conn, data []byte)

// StatusHandler is told about connectivity changes of either role. err is set for
// StatusDisconnected and StatusUnavailable when a cause is known.
type StatusHandler func(role Role, status Status, err error)

// Conn wraps a WebSocket connection. Send may be called from any goroutine.
type Conn struct {
	ws   *websocket.Conn
	role Role
	peer string

	wmu       sync.Mutex // serializes writers
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn, role Role, peer string) *Conn {
	ws.SetReadLimit(maxFrameSize)
	return &Conn{
		ws:   ws,
		role: role,
		peer: peer,
		done: make(chan struct{}),
	}
}

func (c *Conn) Role() Role {
	return c.role
}

// Peer returns the name the remote side identified itself with, if known.
func (c *Conn) Peer() string {
	return c.peer
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// Send writes one frame. The write is bounded by ctx's deadline or writeWait.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.Close()
		return err
	}
	return nil
}

// Close tears the connection down; the read loop returns shortly after.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

// Done is closed once the connection has been closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// readLoop hands frames to h until the connection fails or ctx is cancelled.
// Clean closes are reported as nil.
func (c *Conn) readLoop(ctx context.Context, h FrameHandler) error {
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()
	go c.pingLoop()

	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			c.Close()
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				select {
				case <-c.done:
					return nil
				default:
				}
			}
			return err
		}

		if typ != websocket.TextMessage {
			log.Debugf("wsrelay: ignoring non-text frame (type %d) from %s", typ, c.RemoteAddr())
			continue
		}

		h(ctx, c, data)
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debugf("wsrelay: ping to %s failed: %v", c.RemoteAddr(), err)
				c.Close()
				return
			}
		}
	}
}
