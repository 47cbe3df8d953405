// Package web is the browser front end: chat, personalized tutoring
// sessions, progress, health and metrics over JSON HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"teacher1/chatbot"
	"teacher1/telemetry"
	"teacher1/tutor"

	log "github.com/sirupsen/logrus"
	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"
)

const (
	Version = "1.0.0"

	defaultSessionID  = "default"
	defaultMaxMessage = 500
	maxBodyBytes      = 64 << 10
	forwardTimeout    = 30 * time.Second
)

// Chatter answers free chat when no tutoring session is active.
type Chatter interface {
	Utter(ctx context.Context, text string) (chatbot.Utterance, error)
}

var _ Chatter = (*chatbot.Bot)(nil)

type Config struct {
	AllowedDomains   []string
	MaxMessageLength int
	RateLimit        int // chat messages per minute and session, 0 disables
	RateBurst        int
	// ForwardToRelay also hands tutored messages to the chatbot so its
	// relay peer sees them.
	ForwardToRelay bool
}

type Server struct {
	cfg   Config
	allow *AllowList
	csp   string
	tutor *tutor.Tutor
	chat  Chatter
	limit *limiter.TokenBucket

	mu       sync.Mutex
	sessions map[string]string // client session id -> tutor session id

	handler http.Handler
	now     func() time.Time
}

// New builds the front end. tu and chat may each be nil.
func New(cfg Config, tu *tutor.Tutor, chat Chatter) (*Server, error) {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = defaultMaxMessage
	}
	if cfg.AllowedDomains == nil {
		cfg.AllowedDomains = DefaultAllowedDomains
	}

	s := &Server{
		cfg:      cfg,
		allow:    NewAllowList(cfg.AllowedDomains),
		csp:      ContentSecurityPolicy(cfg.AllowedDomains),
		tutor:    tu,
		chat:     chat,
		sessions: make(map[string]string),
		now:      time.Now,
	}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = cfg.RateLimit
		}
		tb, err := limiter.NewTokenBucket(limiter.Config{
			Rate:     int64(cfg.RateLimit),
			Duration: time.Minute,
			Burst:    int64(burst),
		}, store.NewMemoryStore(time.Minute))
		if err != nil {
			return nil, fmt.Errorf("creating chat rate limiter: %w", err)
		}
		s.limit = tb
	}

	mux := http.NewServeMux()
	mux.Handle("POST /chat", telemetry.Instrument("chat", http.HandlerFunc(s.handleChat)))
	mux.Handle("POST /start_session", telemetry.Instrument("start_session", http.HandlerFunc(s.handleStartSession)))
	mux.Handle("POST /end_session", telemetry.Instrument("end_session", http.HandlerFunc(s.handleEndSession)))
	mux.Handle("GET /progress/{session_id}", telemetry.Instrument("progress", http.HandlerFunc(s.handleProgress)))
	mux.Handle("GET /assessment/{name}", telemetry.Instrument("assessment", http.HandlerFunc(s.handleAssessment)))
	mux.Handle("GET /health", telemetry.Instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /metrics", telemetry.MetricsHandler())
	s.handler = secureHeaders(s.csp, mux)

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve runs until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	hs := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Infof("web.Server: context cancelled, shutting down %s", listener.Addr())
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(sctx); err != nil {
			log.Warnf("web.Server: error shutting down %s: %v", listener.Addr(), err)
		}
	}()

	log.Infof("web.Server: listening on http://%s", listener.Addr())
	err := hs.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("web.Server: writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func (s *Server) tutorSession(clientID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[clientID]
	return id, ok
}

func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

type chatRequest struct {
	Message     *string `json:"message"`
	SessionID   string  `json:"session_id"`
	StudentName string  `json:"student_name"`
}

type chatResponse struct {
	Message      string `json:"message"`
	Timestamp    string `json:"timestamp"`
	Personalized bool   `json:"personalized"`
	*tutor.Meta
	*Embed
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(w, r, &req); err != nil || req.Message == nil {
		writeError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	msg := strings.TrimSpace(*req.Message)
	if msg == "" {
		writeError(w, http.StatusBadRequest, "Empty message")
		return
	}
	if utf8.RuneCountInString(msg) > s.cfg.MaxMessageLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Message too long (max %d characters)", s.cfg.MaxMessageLength))
		return
	}
	if req.SessionID == "" {
		req.SessionID = defaultSessionID
	}
	if s.limit != nil && !s.limit.Allow(req.SessionID) {
		log.Warnf("web.Server: rate limit hit for session %s", req.SessionID)
		writeError(w, http.StatusTooManyRequests, "Too many messages! Let's slow down a little.")
		return
	}

	writeJSON(w, http.StatusOK, s.process(r.Context(), msg, req.SessionID))
}

func (s *Server) process(ctx context.Context, msg, clientID string) chatResponse {
	resp := chatResponse{Timestamp: s.now().UTC().Format(time.RFC3339)}
	if e, ok := s.allow.Find(msg); ok {
		resp.Embed = &e
	}

	if id, ok := s.tutorSession(clientID); ok && s.tutor != nil {
		reply, meta, err := s.tutor.Respond(id, msg)
		if err == nil {
			resp.Message, resp.Personalized, resp.Meta = reply, true, &meta
			s.forward(msg)
			return resp
		}
		log.Errorf("web.Server: tutor error for session %s: %v", clientID, err)
		resp.Message = fallbackReply(msg)
		return resp
	}

	if s.chat != nil {
		u, err := s.chat.Utter(ctx, msg)
		if err == nil {
			resp.Message = u.Reply.Text
			return resp
		}
		log.Errorf("web.Server: chatbot error: %v", err)
	}
	resp.Message = fallbackReply(msg)
	return resp
}

func (s *Server) forward(msg string) {
	if !s.cfg.ForwardToRelay || s.chat == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
		defer cancel()
		if _, err := s.chat.Utter(ctx, msg); err != nil {
			log.Debugf("web.Server: forwarding to chatbot: %v", err)
		}
	}()
}

type sessionRequest struct {
	StudentName *string `json:"student_name"`
	SessionID   string  `json:"session_id"`
}

type startResponse struct {
	Message        string `json:"message"`
	SessionStarted bool   `json:"session_started"`
	StudentName    string `json:"student_name"`
	SessionID      string `json:"session_id"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(w, r, &req); err != nil || req.StudentName == nil {
		writeError(w, http.StatusBadRequest, "Student name required")
		return
	}
	name := strings.TrimSpace(*req.StudentName)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Student name cannot be empty")
		return
	}
	if req.SessionID == "" {
		req.SessionID = defaultSessionID
	}

	resp := startResponse{
		Message:        fmt.Sprintf("Hi %s! Let's learn together!", name),
		SessionStarted: true,
		StudentName:    name,
		SessionID:      req.SessionID,
	}
	if s.tutor == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	// a restarted client session replaces the old one
	if old, ok := s.tutorSession(req.SessionID); ok {
		if _, err := s.tutor.EndSession(old); err != nil {
			log.Debugf("web.Server: closing replaced session %s: %v", req.SessionID, err)
		}
	}

	ts, greeting, err := s.tutor.StartSession(name)
	if err != nil {
		log.Errorf("web.Server: starting session for %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	s.mu.Lock()
	s.sessions[req.SessionID] = ts.ID
	s.mu.Unlock()

	log.WithFields(log.Fields{"session": req.SessionID, "student": name}).Info("web.Server: session started")
	resp.Message = greeting
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(w, r, &req); err != nil {
		log.Debugf("web.Server: end_session without body: %v", err)
	}
	if req.SessionID == "" {
		req.SessionID = defaultSessionID
	}

	msg := "Thanks for learning with me! Come back soon!"

	s.mu.Lock()
	id, ok := s.sessions[req.SessionID]
	delete(s.sessions, req.SessionID)
	s.mu.Unlock()

	if ok && s.tutor != nil {
		goodbye, err := s.tutor.EndSession(id)
		if err != nil && !errors.Is(err, tutor.ErrNoSession) {
			log.Errorf("web.Server: ending session %s: %v", req.SessionID, err)
			writeError(w, http.StatusInternalServerError, "Failed to end session")
			return
		}
		msg = goodbye
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "session_ended": true})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := s.tutorSession(r.PathValue("session_id"))
	if !ok || s.tutor == nil {
		writeError(w, http.StatusNotFound, "No active session found")
		return
	}
	sum, err := s.tutor.Progress(id)
	if errors.Is(err, tutor.ErrNoSession) {
		writeError(w, http.StatusNotFound, "No active session found")
		return
	}
	if err != nil {
		log.Errorf("web.Server: progress for %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to get progress")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleAssessment serves a learner's progress report as JSON, or as plain
// text with ?format=text.
func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if s.tutor == nil {
		writeError(w, http.StatusNotFound, "Student not found")
		return
	}
	a, err := s.tutor.Assess(name)
	if errors.Is(err, tutor.ErrUnknownStudent) {
		writeError(w, http.StatusNotFound, "Student not found")
		return
	}
	if err != nil {
		log.Errorf("web.Server: assessing %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "Failed to assess student")
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, a.Report())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                         "healthy",
		"chatbot_available":              s.chat != nil,
		"personalized_chatbot_available": s.tutor != nil,
		"active_sessions":                s.ActiveSessions(),
		"version":                        Version,
	})
}
