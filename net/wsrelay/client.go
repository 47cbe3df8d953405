package wsrelay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"

	log "github.com/sirupsen/logrus"
)

type ClientOptions struct {
	MaxAttempts      int           // dial attempts per round before reporting StatusUnavailable
	InitialBackoff   time.Duration // delay after the first failed attempt, doubled after each failure
	MaxBackoff       time.Duration
	RetryCooldown    time.Duration // pause between rounds once the peer was declared unavailable
	HandshakeTimeout time.Duration
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		MaxAttempts:      5,
		InitialBackoff:   500 * time.Millisecond,
		MaxBackoff:       8 * time.Second,
		RetryCooldown:    15 * time.Second,
		HandshakeTimeout: 5 * time.Second,
	}
}

func (o *ClientOptions) sanitize() {
	d := DefaultClientOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = d.InitialBackoff
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = o.InitialBackoff
	}
	if o.RetryCooldown <= 0 {
		o.RetryCooldown = d.RetryCooldown
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
}

// Client keeps an outbound connection to the peer's server.
type Client struct {
	url    string
	self   string
	opts   ClientOptions
	dialer websocket.Dialer

	onFrame  FrameHandler
	onStatus StatusHandler

	mu      sync.Mutex
	current *Conn

	sg         singleflight.Group
	wake       chan struct{}
	reconnects atomic.Int64
}

// NewClient creates a client for the peer at url (ws://host:port/), identifying itself as self.
func NewClient(url, self string, opts ClientOptions, onFrame FrameHandler, onStatus StatusHandler) *Client {
	opts.sanitize()
	return &Client{
		url:  url,
		self: self,
		opts: opts,
		dialer: websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		onFrame:  onFrame,
		onStatus: onStatus,
		wake:     make(chan struct{}, 1),
	}
}

func (c *Client) URL() string {
	return c.url
}

// Conn returns the current outbound connection or nil.
func (c *Client) Conn() *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Reconnects counts how many times an established link was lost.
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// Connect returns the current connection, dialing one bounded round if there is none.
// Concurrent callers share a single dial round. After MaxAttempts failures it
// returns an error wrapping ErrUnavailable.
func (c *Client) Connect(ctx context.Context) (*Conn, error) {
	if conn := c.Conn(); conn != nil {
		return conn, nil
	}

	v, err, _ := c.sg.Do("dial", func() (interface{}, error) {
		if conn := c.Conn(); conn != nil {
			return conn, nil
		}
		conn, err := c.dialRound(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.current = conn
		c.mu.Unlock()

		// Run may be waiting out its cooldown
		select {
		case c.wake <- struct{}{}:
		default:
		}
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Conn), nil
}

func (c *Client) dialRound(ctx context.Context) (*Conn, error) {
	header := http.Header{}
	header.Set(HeaderNode, c.self)

	var tempDelay time.Duration
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		ws, resp, err := c.dialer.DialContext(ctx, c.url, header)
		if err == nil {
			log.Infof("wsrelay.Client: connected to %s (attempt %d)", c.url, attempt)
			return newConn(ws, RoleClient, ""), nil
		}
		if resp != nil {
			err = fmt.Errorf("%w (handshake status %d)", err, resp.StatusCode)
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.opts.MaxAttempts {
			break
		}

		if tempDelay == 0 {
			tempDelay = c.opts.InitialBackoff
		} else {
			tempDelay *= 2
		}
		if tempDelay > c.opts.MaxBackoff {
			tempDelay = c.opts.MaxBackoff
		}
		log.Debugf("wsrelay.Client: dial %s failed: %v; retrying in %v", c.url, err, tempDelay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(tempDelay):
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrUnavailable, c.url, c.opts.MaxAttempts, lastErr)
}

// Run keeps the outbound link up until ctx is cancelled. Lost links are redialed;
// exhausted dial rounds are reported as StatusUnavailable and retried after the cooldown.
func (c *Client) Run(ctx context.Context) error {
	for {
		conn, err := c.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, ErrUnavailable) {
				// shared round was cut short by another caller's context
				continue
			}
			log.Warnf("wsrelay.Client: %v", err)
			c.notify(StatusUnavailable, err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.wake:
			case <-time.After(c.opts.RetryCooldown):
			}
			continue
		}

		select {
		case <-c.wake:
		default:
		}

		c.notify(StatusConnected, nil)
		err = conn.readLoop(ctx, c.onFrame)

		c.mu.Lock()
		if c.current == conn {
			c.current = nil
		}
		c.mu.Unlock()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.reconnects.Add(1)
		if err != nil {
			log.Warnf("wsrelay.Client: link to %s lost: %v", c.url, err)
		} else {
			log.Infof("wsrelay.Client: link to %s closed by peer", c.url)
		}
		c.notify(StatusDisconnected, err)
	}
}

// Close drops the current link. Run will redial.
func (c *Client) Close() error {
	if conn := c.Conn(); conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) notify(s Status, err error) {
	if c.onStatus != nil {
		c.onStatus(RoleClient, s, err)
	}
}
