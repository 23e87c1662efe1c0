package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the coordinator configuration. Safety ceilings are applied
// once, at load time; the relay core trusts a loaded Config and does not
// re-validate at session start.
type Config struct {
	// TriggerPhrases are literal substrings that gate extracted messages
	TriggerPhrases []string `yaml:"trigger_phrases"`

	Timing  TimingConfig  `yaml:"timing"`
	Session SessionConfig `yaml:"session"`
	Safety  SafetyConfig  `yaml:"safety"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
}

// TimingConfig controls the randomized relay delay
type TimingConfig struct {
	// MinDelayMS is the minimum relay delay in milliseconds
	MinDelayMS int `yaml:"min_delay_ms"`
	// MaxDelayMS is the maximum relay delay in milliseconds
	MaxDelayMS int `yaml:"max_delay_ms"`
	// DeliveryTimeoutMS bounds a single delivery call (0 = default)
	DeliveryTimeoutMS int `yaml:"delivery_timeout_ms"`
}

// SessionConfig controls the per-session exchange draw
type SessionConfig struct {
	// MinExchanges is the inclusive lower bound for the exchange draw
	MinExchanges int `yaml:"min_exchanges"`
	// MaxExchanges is the inclusive upper bound for the exchange draw
	MaxExchanges int `yaml:"max_exchanges"`
}

// SafetyConfig holds the hard limits enforced when the config is loaded
type SafetyConfig struct {
	// MinDelayLimitMS is the absolute floor for the relay delay
	MinDelayLimitMS int `yaml:"min_delay_limit_ms"`
	// MaxExchangesPerSession caps the exchange draw regardless of MaxExchanges
	MaxExchangesPerSession int `yaml:"max_exchanges_per_session"`
	// RequireManualApproval holds every relay for explicit approval
	RequireManualApproval bool `yaml:"require_manual_approval"`
}

// StorageConfig controls transcript persistence
type StorageConfig struct {
	// TranscriptDir is where transcripts are written (empty = in-memory only)
	TranscriptDir string `yaml:"transcript_dir"`
	// RetentionDays is how long transcripts are kept before pruning
	RetentionDays int `yaml:"retention_days"`
}

// ServerConfig controls the listening surfaces
type ServerConfig struct {
	// ListenAddr is the WebSocket hub address for platform clients
	ListenAddr string `yaml:"listen_addr"`
	// HTTPAddr is the MCP HTTP/SSE address when HTTP mode is enabled
	HTTPAddr string `yaml:"http_addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		TriggerPhrases: DefaultTriggerPhrases(),
		Timing: TimingConfig{
			MinDelayMS: DefaultMinDelayMS,
			MaxDelayMS: DefaultMaxDelayMS,
		},
		Session: SessionConfig{
			MinExchanges: DefaultMinExchanges,
			MaxExchanges: DefaultMaxExchanges,
		},
		Safety: SafetyConfig{
			MinDelayLimitMS:        DefaultMinDelayLimitMS,
			MaxExchangesPerSession: DefaultMaxExchangesPerSession,
			RequireManualApproval:  true,
		},
		Storage: StorageConfig{
			RetentionDays: DefaultRetentionDays,
		},
		Server: ServerConfig{
			ListenAddr: DefaultListenAddr,
			HTTPAddr:   ":8081",
		},
	}
}

// Load reads the config from disk, or returns defaults if path is empty or
// the file does not exist. The loaded config is validated and then clamped
// to the safety limits, so callers always receive a config the relay core
// can trust.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.clamp()
	return cfg, nil
}

// Validate checks that the config is internally consistent.
// Clamping is separate: Validate rejects nonsense, clamp() adjusts
// out-of-policy values that are otherwise well-formed.
func (c *Config) Validate() error {
	if c.Timing.MinDelayMS < 0 || c.Timing.MaxDelayMS < 0 {
		return errors.New("relay delays cannot be negative")
	}
	if c.Timing.DeliveryTimeoutMS < 0 {
		return errors.New("delivery timeout cannot be negative")
	}
	if c.Session.MinExchanges < 1 {
		return errors.New("min_exchanges must be at least 1")
	}
	if c.Session.MaxExchanges < c.Session.MinExchanges {
		return fmt.Errorf("max_exchanges (%d) cannot be below min_exchanges (%d)",
			c.Session.MaxExchanges, c.Session.MinExchanges)
	}
	if c.Safety.MaxExchangesPerSession < 1 {
		return errors.New("max_exchanges_per_session must be at least 1")
	}
	if c.Safety.MinDelayLimitMS < 0 {
		return errors.New("min_delay_limit_ms cannot be negative")
	}
	if c.Storage.RetentionDays < 1 {
		return errors.New("retention_days must be at least 1")
	}
	return nil
}

// clamp applies the safety floors and ceilings. This is the only place the
// limits are enforced; draws at session start use the clamped values as-is.
func (c *Config) clamp() {
	if c.Timing.MinDelayMS < c.Safety.MinDelayLimitMS {
		c.Timing.MinDelayMS = c.Safety.MinDelayLimitMS
	}
	if c.Timing.MaxDelayMS < c.Timing.MinDelayMS {
		c.Timing.MaxDelayMS = c.Timing.MinDelayMS
	}
	if c.Session.MaxExchanges > c.Safety.MaxExchangesPerSession {
		c.Session.MaxExchanges = c.Safety.MaxExchangesPerSession
	}
	if c.Session.MinExchanges > c.Session.MaxExchanges {
		c.Session.MinExchanges = c.Session.MaxExchanges
	}
}

// MinDelay returns the minimum relay delay as a duration
func (c *Config) MinDelay() time.Duration {
	return time.Duration(c.Timing.MinDelayMS) * time.Millisecond
}

// MaxDelay returns the maximum relay delay as a duration
func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.Timing.MaxDelayMS) * time.Millisecond
}

// DeliveryTimeout returns the bounded wait for a single delivery call
func (c *Config) DeliveryTimeout() time.Duration {
	if c.Timing.DeliveryTimeoutMS <= 0 {
		return DefaultDeliveryTimeout
	}
	return time.Duration(c.Timing.DeliveryTimeoutMS) * time.Millisecond
}

// Retention returns the transcript retention window
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}
