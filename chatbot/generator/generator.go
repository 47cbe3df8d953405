// Package generator talks to a pretrained dialogue model served over HTTP.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	log "github.com/sirupsen/logrus"
)

var (
	ErrUnavailable = errors.New("generator unavailable")
	ErrEmptyReply  = errors.New("generator returned an empty reply")
)

// Generator produces a reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	URL     string // base URL of an Ollama-compatible server
	Model   string
	Timeout time.Duration

	// consecutive failures before the breaker opens, and how long it stays open
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Stream   bool           `json:"stream"`
	Messages []chatMessage  `json:"messages"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// HTTP calls POST {URL}/api/chat behind a circuit breaker.
type HTTP struct {
	endpoint string
	model    string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker
}

var _ Generator = (*HTTP)(nil)

func NewHTTP(cfg Config) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	g := &HTTP{
		endpoint: strings.TrimRight(strings.TrimSpace(cfg.URL), "/") + "/api/chat",
		model:    cfg.Model,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "generator",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("Generator: breaker %s -> %s", from, to)
		},
		// a cancelled caller says nothing about the model's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return g
}

// State reports the breaker state: "closed", "half-open" or "open".
func (g *HTTP) State() string {
	return g.cb.State().String()
}

func (g *HTTP) Generate(ctx context.Context, prompt string) (string, error) {
	v, err := g.cb.Execute(func() (interface{}, error) {
		return g.call(ctx, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *HTTP) call(ctx context.Context, prompt string) (string, error) {
	buf, err := json.Marshal(&chatRequest{
		Model:    g.model,
		Stream:   false,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Options:  map[string]any{"temperature": 0.7},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generator request to %s: %w", g.endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("generator http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("generator returned non-json payload: %w", err)
	}
	content := strings.TrimSpace(parsed.Message.Content)
	if content == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
