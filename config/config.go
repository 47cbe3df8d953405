package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// NodeConfig describes one side of the relay.
type NodeConfig struct {
	Name        string `json:"name"`
	Listen      string `json:"listen"`       // address of this node's server role
	Peer        string `json:"peer"`         // name the peer must present when dialing in
	PeerAddress string `json:"peer_address"` // host:port of the peer's server role
	JournalPath string `json:"journal,omitempty"`
}

// PeerURL is the WebSocket URL the client role dials.
func (n NodeConfig) PeerURL() string {
	return "ws://" + n.PeerAddress + "/"
}

// Config represents the configuration of both relay nodes and their front ends
type Config struct {
	// Default config file location
	configFile string

	Relay struct {
		AI      NodeConfig `json:"ai"`
		Chatbot NodeConfig `json:"chatbot"`

		AnswerTimeout  Duration `json:"answer_timeout"`
		DialAttempts   int      `json:"dial_attempts"`
		InitialBackoff Duration `json:"initial_backoff"`
		MaxBackoff     Duration `json:"max_backoff"`
		RetryCooldown  Duration `json:"retry_cooldown"`
		DedupCapacity  int      `json:"dedup_capacity"`
		DedupMaxAge    Duration `json:"dedup_max_age"`
	} `json:"relay"`

	Simulation struct {
		Size           int      `json:"size"`
		Channels       int      `json:"channels"`
		StateDim       int      `json:"state_dim"`
		LearningRate   float64  `json:"learning_rate"`
		StepInterval   Duration `json:"step_interval"`
		InsightEvery   int      `json:"insight_every"`
		AskProbability float64  `json:"ask_probability"`
		Seed           int64    `json:"seed"`
	} `json:"simulation"`

	Chatbot struct {
		// Empty GeneratorURL answers from templates only
		GeneratorURL       string   `json:"generator_url"`
		Model              string   `json:"model"`
		Timeout            Duration `json:"timeout"`
		BreakerThreshold   uint32   `json:"breaker_threshold"`
		BreakerOpenTimeout Duration `json:"breaker_open_timeout"`
		Greet              bool     `json:"greet"`
		ProactiveInterval  Duration `json:"proactive_interval"` // 0s disables
		Seed               int64    `json:"seed"`
	} `json:"chatbot"`

	DataStore struct {
		ProfilePath    string `json:"profiles"`
		TranscriptPath string `json:"transcripts"`
	} `json:"datastore"`

	Web struct {
		Listen           string   `json:"listen"`
		AllowedDomains   []string `json:"allowed_domains,omitempty"` // empty uses the built-in list
		MaxMessageLength int      `json:"max_message_length"`
		RateLimit        int      `json:"rate_limit"` // chat messages per minute and session
		RateBurst        int      `json:"rate_burst"`
		ForwardToRelay   bool     `json:"forward_to_relay"`
	} `json:"web"`

	Speech struct {
		Enabled    bool     `json:"enabled"`
		TTSCommand string   `json:"tts_command"`
		STTCommand string   `json:"stt_command,omitempty"`
		Timeout    Duration `json:"timeout"`
	} `json:"speech"`
}

// NewEmptyConfig generates a new configuration with default settings
func NewEmptyConfig(configFile string) *Config {
	cfg := &Config{}

	cfg.configFile = configFile

	cfg.Relay.AI = NodeConfig{
		Name:        "fractal_ai",
		Listen:      "127.0.0.1:8765",
		Peer:        "rasa_bot",
		PeerAddress: "127.0.0.1:8766",
		JournalPath: "/tmp/teacher1/journal/fractal_ai",
	}
	cfg.Relay.Chatbot = NodeConfig{
		Name:        "rasa_bot",
		Listen:      "127.0.0.1:8766",
		Peer:        "fractal_ai",
		PeerAddress: "127.0.0.1:8765",
		JournalPath: "/tmp/teacher1/journal/rasa_bot",
	}
	cfg.Relay.AnswerTimeout = Duration{30 * time.Second}
	cfg.Relay.DialAttempts = 5
	cfg.Relay.InitialBackoff = Duration{500 * time.Millisecond}
	cfg.Relay.MaxBackoff = Duration{8 * time.Second}
	cfg.Relay.RetryCooldown = Duration{15 * time.Second}
	cfg.Relay.DedupCapacity = 1000
	cfg.Relay.DedupMaxAge = Duration{10 * time.Minute}

	cfg.Simulation.Size = 16
	cfg.Simulation.Channels = 4
	cfg.Simulation.StateDim = 5
	cfg.Simulation.LearningRate = 0.0011
	cfg.Simulation.StepInterval = Duration{100 * time.Millisecond}
	cfg.Simulation.InsightEvery = 100
	cfg.Simulation.AskProbability = 0.3
	cfg.Simulation.Seed = 1

	cfg.Chatbot.Model = "llama3.2"
	cfg.Chatbot.Timeout = Duration{20 * time.Second}
	cfg.Chatbot.BreakerThreshold = 3
	cfg.Chatbot.BreakerOpenTimeout = Duration{30 * time.Second}
	cfg.Chatbot.Greet = true
	cfg.Chatbot.ProactiveInterval = Duration{60 * time.Second}
	cfg.Chatbot.Seed = 1

	cfg.DataStore.ProfilePath = "/tmp/teacher1/profiles"
	cfg.DataStore.TranscriptPath = "/tmp/teacher1/transcripts"

	cfg.Web.Listen = "127.0.0.1:5000"
	cfg.Web.MaxMessageLength = 500
	cfg.Web.RateLimit = 30
	cfg.Web.RateBurst = 10

	cfg.Speech.TTSCommand = "espeak -s 140"
	cfg.Speech.Timeout = Duration{30 * time.Second}

	return cfg
}

func NewConfigFromFile(configFile string) (*Config, error) {
	cfg := NewEmptyConfig(configFile)
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Path() string {
	return c.configFile
}

// Save saves the configuration to a file
func (c *Config) Save() error {
	log.Infof("Saving config to %s", c.configFile)

	// We'll marshall our structure to JSON and write it into a file
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.configFile, data, 0644)
}

func (c *Config) Load() error {
	log.Infof("Loading config from %s", c.configFile)
	data, err := os.ReadFile(c.configFile)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", c.configFile, err)
	}

	return nil
}

func validateNode(side string, n NodeConfig) error {
	switch {
	case n.Name == "":
		return fmt.Errorf("relay.%s.name is empty", side)
	case n.Listen == "":
		return fmt.Errorf("relay.%s.listen is empty", side)
	case n.PeerAddress == "":
		return fmt.Errorf("relay.%s.peer_address is empty", side)
	}
	return nil
}

// Validate rejects settings no node could run with.
func (c *Config) Validate() error {
	var errs []error
	if err := validateNode("ai", c.Relay.AI); err != nil {
		errs = append(errs, err)
	}
	if err := validateNode("chatbot", c.Relay.Chatbot); err != nil {
		errs = append(errs, err)
	}
	if c.Relay.AI.Name != "" && c.Relay.AI.Name == c.Relay.Chatbot.Name {
		errs = append(errs, fmt.Errorf("relay nodes must have different names, both are %q", c.Relay.AI.Name))
	}
	if c.Relay.AnswerTimeout.Duration <= 0 {
		errs = append(errs, errors.New("relay.answer_timeout must be positive"))
	}
	if c.Relay.DedupCapacity <= 0 {
		errs = append(errs, errors.New("relay.dedup_capacity must be positive"))
	}
	if c.Simulation.Size <= 0 || c.Simulation.Channels <= 0 || c.Simulation.StateDim <= 0 {
		errs = append(errs, errors.New("simulation dimensions must be positive"))
	}
	if p := c.Simulation.AskProbability; p < 0 || p > 1 {
		errs = append(errs, fmt.Errorf("simulation.ask_probability %v is outside [0,1]", p))
	}
	return errors.Join(errs...)
}
