package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for errors. It is called after defaults
// are applied, so zero values that have defaults never reach it.
func Validate(cfg *Config) error {
	if cfg.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address must not be empty")
	}

	for i, base := range cfg.Gateway.BaseURLs {
		// Empty slots are tolerated; they behave as connections with nothing
		// to serve.
		if base == "" {
			continue
		}
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("gateway.base_urls[%d]: invalid url %q", i, base)
		}
		if strings.HasSuffix(base, "/") {
			return fmt.Errorf("gateway.base_urls[%d]: trailing slash in %q", i, base)
		}
	}

	switch cfg.Store.Backend {
	case "memory":
	case "sqlite":
		if cfg.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path must be set for the sqlite backend")
		}
	default:
		return fmt.Errorf("store.backend must be \"memory\" or \"sqlite\", got %q", cfg.Store.Backend)
	}

	for i, key := range cfg.Auth.Keys {
		if key.Key == "" {
			return fmt.Errorf("auth.keys[%d].key must not be empty", i)
		}
		if key.UserID == "" {
			return fmt.Errorf("auth.keys[%d].user_id must not be empty", i)
		}
		switch key.Role {
		case "", "user", "admin":
		default:
			return fmt.Errorf("auth.keys[%d].role must be \"admin\" or \"user\", got %q", i, key.Role)
		}
	}

	switch strings.ToLower(cfg.Telemetry.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("telemetry.logging.level: invalid level %q", cfg.Telemetry.Logging.Level)
	}
	switch strings.ToLower(cfg.Telemetry.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format must be \"json\" or \"text\", got %q", cfg.Telemetry.Logging.Format)
	}

	return nil
}
