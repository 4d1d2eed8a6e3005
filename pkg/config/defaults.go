package config

import (
	"time"

	"github.com/ISA-Forensic/GiSaWeb/pkg/registry"
)

// Default values applied to unset fields.
const (
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20

	DefaultRequestTimeout   = 5 * time.Minute
	DefaultModelListTimeout = 10 * time.Second

	DefaultStoreBackend = "memory"
	DefaultSQLitePath   = "gisaweb.db"

	DefaultSpeechCacheDir = "cache/audio/speech"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills in default values for unset fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if cfg.Gateway.RequestTimeout == 0 {
		cfg.Gateway.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Gateway.ModelListTimeout == 0 {
		cfg.Gateway.ModelListTimeout = DefaultModelListTimeout
	}
	if cfg.Gateway.Connections == nil {
		cfg.Gateway.Connections = map[string]registry.ConnectionConfig{}
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = DefaultSQLitePath
	}

	if cfg.SpeechCache.Dir == "" {
		cfg.SpeechCache.Dir = DefaultSpeechCacheDir
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
}
