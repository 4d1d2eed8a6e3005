package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file, applies defaults and validates
// the result. Environment variables are not consulted; use LoadWithEnv for
// that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnv loads configuration from a YAML file and applies environment
// variable overrides of the form GISAWEB_SECTION_FIELD
// (e.g. GISAWEB_SERVER_LISTEN_ADDRESS). Environment variables always take
// precedence over file-based configuration.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies GISAWEB_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("GISAWEB_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("GISAWEB_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("GISAWEB_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("GISAWEB_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	if val := os.Getenv("GISAWEB_GATEWAY_ENABLE"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Gateway.Enable = &b
		}
	}
	// Connection lists are semicolon-separated to keep urls with commas in
	// query strings intact.
	if val := os.Getenv("GISAWEB_GATEWAY_BASE_URLS"); val != "" {
		cfg.Gateway.BaseURLs = splitList(val)
	}
	if val := os.Getenv("GISAWEB_GATEWAY_API_KEYS"); val != "" {
		cfg.Gateway.APIKeys = splitList(val)
	}
	if val := os.Getenv("GISAWEB_GATEWAY_FORWARD_USER_INFO_HEADERS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Gateway.ForwardUserInfoHeaders = b
		}
	}
	if val := os.Getenv("GISAWEB_GATEWAY_BYPASS_MODEL_ACCESS_CONTROL"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Gateway.BypassModelAccessControl = b
		}
	}
	if val := os.Getenv("GISAWEB_GATEWAY_REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Gateway.RequestTimeout = d
		}
	}
	if val := os.Getenv("GISAWEB_GATEWAY_MODEL_LIST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Gateway.ModelListTimeout = d
		}
	}

	if val := os.Getenv("GISAWEB_STORE_BACKEND"); val != "" {
		cfg.Store.Backend = val
	}
	if val := os.Getenv("GISAWEB_STORE_SQLITE_PATH"); val != "" {
		cfg.Store.SQLitePath = val
	}

	if val := os.Getenv("GISAWEB_SPEECH_CACHE_DIR"); val != "" {
		cfg.SpeechCache.Dir = val
	}
	if val := os.Getenv("GISAWEB_SPEECH_CACHE_SWEEP_SCHEDULE"); val != "" {
		cfg.SpeechCache.SweepSchedule = val
	}

	if val := os.Getenv("GISAWEB_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("GISAWEB_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
}

// splitList splits a semicolon-separated list, trimming whitespace around
// each element. Empty elements are kept so list positions stay aligned.
func splitList(val string) []string {
	parts := strings.Split(val, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
