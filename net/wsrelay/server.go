package wsrelay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	log "github.com/sirupsen/logrus"
)

// Server accepts WebSocket connections from the expected peer. It holds at most
// one inbound connection: a new handshake from the peer replaces the old link.
type Server struct {
	listener net.Listener
	expected string
	upgrader websocket.Upgrader

	onFrame  FrameHandler
	onStatus StatusHandler

	mu      sync.Mutex
	current *Conn
	ctx     context.Context
	closed  bool

	// hijacked connections outlive http.Server.Shutdown
	active sync.WaitGroup
}

// NewServer creates a server on listener. If expectedPeer is empty any dialer is accepted.
func NewServer(listener net.Listener, expectedPeer string, onFrame FrameHandler, onStatus StatusHandler) *Server {
	return &Server{
		listener: listener,
		expected: expectedPeer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		onFrame:  onFrame,
		onStatus: onStatus,
		ctx:      context.Background(),
	}
}

func (srv *Server) Addr() net.Addr {
	return srv.listener.Addr()
}

// Conn returns the current inbound connection or nil.
func (srv *Server) Conn() *Conn {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.current
}

// Serve runs until ctx is cancelled or the listener fails.
func (srv *Server) Serve(ctx context.Context) error {
	srv.mu.Lock()
	srv.ctx = ctx
	srv.closed = false
	srv.mu.Unlock()

	hs := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Infof("wsrelay.Server: context cancelled, shutting down listener %s", srv.listener.Addr())
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := hs.Shutdown(sctx); err != nil {
			log.Warnf("wsrelay.Server: error shutting down %s: %v", srv.listener.Addr(), err)
		}
	}()

	log.Infof("wsrelay.Server: listening on %s", srv.listener.Addr())
	err := hs.Serve(srv.listener)
	srv.drain()
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	log.Errorf("wsrelay.Server: critical error on %s: %v. Server stopping.", srv.listener.Addr(), err)
	return err
}

// drain closes the inbound link and waits until no handler is reading from it.
// Frame handlers are never called once drain returns.
func (srv *Server) drain() {
	srv.mu.Lock()
	srv.closed = true
	c := srv.current
	srv.mu.Unlock()

	if c != nil {
		c.Close()
	}
	srv.active.Wait()
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srv.mu.Lock()
	if srv.closed {
		srv.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	srv.active.Add(1)
	srv.mu.Unlock()
	defer srv.active.Done()

	peer := r.Header.Get(HeaderNode)
	if srv.expected != "" && peer != srv.expected {
		log.Warnf("wsrelay.Server: rejecting handshake from %s claiming to be %q", r.RemoteAddr, peer)
		http.Error(w, "unexpected peer", http.StatusForbidden)
		return
	}

	ws, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		log.Warnf("wsrelay.Server: upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	conn := newConn(ws, RoleServer, peer)

	srv.mu.Lock()
	if srv.closed {
		srv.mu.Unlock()
		conn.Close()
		return
	}
	old := srv.current
	srv.current = conn
	ctx := srv.ctx
	srv.mu.Unlock()

	if old != nil {
		log.Infof("wsrelay.Server: %s reconnected from %s, replacing previous link", peer, r.RemoteAddr)
		old.Close()
	}

	log.Infof("wsrelay.Server: accepted %s from %s on %s", peer, r.RemoteAddr, srv.listener.Addr())
	srv.notify(StatusConnected, nil)

	err = conn.readLoop(ctx, srv.onFrame)

	srv.mu.Lock()
	replaced := srv.current != conn
	if !replaced {
		srv.current = nil
	}
	srv.mu.Unlock()

	if replaced {
		return
	}
	if err != nil {
		log.Warnf("wsrelay.Server: connection from %s lost: %v", r.RemoteAddr, err)
	} else {
		log.Infof("wsrelay.Server: connection from %s closed", r.RemoteAddr)
	}
	srv.notify(StatusDisconnected, err)
}

func (srv *Server) notify(s Status, err error) {
	if srv.onStatus != nil {
		srv.onStatus(RoleServer, s, err)
	}
}
