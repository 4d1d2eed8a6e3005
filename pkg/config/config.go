// Package config defines the gateway configuration, its defaults and
// validation, YAML loading with environment overrides, and live reload.
package config

import (
	"time"

	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
)

// Config is the root configuration structure for the gateway.
type Config struct {
	// Server contains the HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Gateway contains the upstream connection set and routing behavior.
	Gateway GatewayConfig `yaml:"gateway"`

	// Auth contains gateway API key configuration.
	Auth AuthConfig `yaml:"auth"`

	// Store contains the model and knowledge base registry backend.
	Store StoreConfig `yaml:"store"`

	// SpeechCache contains the synthesized audio cache settings.
	SpeechCache SpeechCacheConfig `yaml:"speech_cache"`

	// Telemetry contains logging and metrics settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds response writes. Zero means no timeout; streaming
	// responses need it to stay zero or generous.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header parsing.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// GatewayConfig contains the connection set and gateway behavior.
type GatewayConfig struct {
	// Enable gates the whole OpenAI-compatible surface. When disabled, model
	// listings are empty and dispatch is rejected.
	// Default: true
	Enable *bool `yaml:"enable"`

	// BaseURLs are the upstream API base urls, one per connection, in
	// priority order. Index 0 is the default connection.
	BaseURLs []string `yaml:"base_urls"`

	// APIKeys are the per-connection credentials, parallel to BaseURLs.
	// Shorter lists are padded with empty keys; longer lists are truncated.
	APIKeys []string `yaml:"api_keys"`

	// Connections holds per-connection settings keyed by the connection's
	// index as a string. Base-url keys are accepted for backward
	// compatibility.
	Connections map[string]registry.ConnectionConfig `yaml:"connections"`

	// ForwardUserInfoHeaders forwards caller identity headers upstream.
	// Default: false
	ForwardUserInfoHeaders bool `yaml:"forward_user_info_headers"`

	// BypassModelAccessControl disables per-model access checks globally.
	// Default: false
	BypassModelAccessControl bool `yaml:"bypass_model_access_control"`

	// RequestTimeout bounds buffered upstream requests. Streaming responses
	// are exempt.
	// Default: 5m
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ModelListTimeout bounds each connection's model list call during
	// catalog aggregation.
	// Default: 10s
	ModelListTimeout time.Duration `yaml:"model_list_timeout"`
}

// Enabled reports the gateway enable flag, defaulting to true.
func (g *GatewayConfig) Enabled() bool {
	return g.Enable == nil || *g.Enable
}

// AuthConfig contains gateway API key configuration.
type AuthConfig struct {
	// Keys are the accepted gateway API keys and the identities they map to.
	Keys []KeyConfig `yaml:"keys"`
}

// KeyConfig is one configured gateway API key.
type KeyConfig struct {
	Key    string `yaml:"key"`
	UserID string `yaml:"user_id"`
	Name   string `yaml:"name"`
	Email  string `yaml:"email"`

	// Role is "admin" or "user". Default: "user"
	Role string `yaml:"role"`

	// Enabled allows disabling a key without removing it. Default: true
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports the key enable flag, defaulting to true.
func (k *KeyConfig) IsEnabled() bool {
	return k.Enabled == nil || *k.Enabled
}

// StoreConfig selects the registry backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	// Default: "gisaweb.db"
	SQLitePath string `yaml:"sqlite_path"`
}

// SpeechCacheConfig contains the synthesized audio cache settings.
type SpeechCacheConfig struct {
	// Enabled turns the cache on.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Dir is the cache directory.
	// Default: "cache/audio/speech"
	Dir string `yaml:"dir"`

	// SweepSchedule is a cron expression for retention sweeps. Empty
	// disables sweeping.
	SweepSchedule string `yaml:"sweep_schedule"`

	// MaxAge removes cached entries older than this during sweeps.
	MaxAge time.Duration `yaml:"max_age"`
}

// IsEnabled reports the cache enable flag, defaulting to true.
func (s *SpeechCacheConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled exposes /metrics.
	// Default: true
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports the metrics enable flag, defaulting to true.
func (m *MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}
