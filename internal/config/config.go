// Package config loads the gateway configuration from a YAML file with
// environment variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/veritas-ledger/gateway/internal/logging"
)

// DefaultPath is the configuration file used when GATEWAY_CONFIG is unset.
const DefaultPath = "config/gateway.yaml"

// Config is the root gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Logging   logging.Config  `yaml:"logging" json:"logging"`
	Protocol  ProtocolConfig  `yaml:"protocol" json:"protocol"`
	Queue     QueueConfig     `yaml:"queue" json:"queue"`
	Events    EventsConfig    `yaml:"events" json:"events"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" json:"cors"`
	Admin     AdminConfig     `yaml:"admin" json:"admin"`
	Genesis   string          `yaml:"genesis" json:"genesis"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address" json:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxContentLen   int64         `yaml:"max_content_len" json:"max_content_len"`
}

// ProtocolConfig controls wire-envelope acceptance.
type ProtocolConfig struct {
	SupportedVersions []uint8 `yaml:"supported_versions" json:"supported_versions"`
}

// QueueConfig controls the accepted-transaction queue.
type QueueConfig struct {
	Capacity         int           `yaml:"capacity" json:"capacity"`
	TransactionTTL   time.Duration `yaml:"transaction_ttl" json:"transaction_ttl"`
	EvictionSchedule string        `yaml:"eviction_schedule" json:"eviction_schedule"`
}

// EventsConfig controls event subscriptions.
type EventsConfig struct {
	BufferSize int           `yaml:"buffer_size" json:"buffer_size"`
	AckTimeout time.Duration `yaml:"ack_timeout" json:"ack_timeout"`
}

// RateLimitConfig controls per-client request throttling.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int  `yaml:"burst" json:"burst"`
}

// CORSConfig controls cross-origin access.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// AdminConfig controls the configuration endpoint guard. The secret is only
// read from the environment, never from the file.
type AdminConfig struct {
	JWTSecret string `yaml:"-" json:"-"`
}

// Load reads the configuration from GATEWAY_CONFIG (or DefaultPath), applies
// environment overrides and validates the result. A missing file yields the
// defaults.
func Load() (*Config, error) {
	path := os.Getenv("GATEWAY_CONFIG")
	if path == "" {
		path = DefaultPath
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxContentLen:   1 << 20, // 1 MiB
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Protocol: ProtocolConfig{
			SupportedVersions: []uint8{1},
		},
		Queue: QueueConfig{
			Capacity:         65536,
			TransactionTTL:   24 * time.Hour,
			EvictionSchedule: "@every 1m",
		},
		Events: EventsConfig{
			BufferSize: 64,
			AckTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 100,
			Burst:             200,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GATEWAY_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("GATEWAY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GATEWAY_ADMIN_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
	if v := os.Getenv("GATEWAY_GENESIS"); v != "" {
		cfg.Genesis = v
	}
	if v := os.Getenv("GATEWAY_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.Capacity = n
		}
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Server.MaxContentLen <= 0 {
		return fmt.Errorf("server.max_content_len must be positive")
	}
	if len(c.Protocol.SupportedVersions) == 0 {
		return fmt.Errorf("protocol.supported_versions must not be empty")
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue.capacity must be positive")
	}
	if c.Queue.TransactionTTL <= 0 {
		return fmt.Errorf("queue.transaction_ttl must be positive")
	}
	if c.Events.BufferSize <= 0 {
		return fmt.Errorf("events.buffer_size must be positive")
	}
	if c.Events.AckTimeout <= 0 {
		return fmt.Errorf("events.ack_timeout must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be positive when enabled")
	}
	return nil
}
