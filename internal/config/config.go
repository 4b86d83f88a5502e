// Package config loads and validates application configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Store settings.
	DBPath      string // Path to the SQLite backing file.
	BusyTimeout time.Duration

	// Retrieval settings.
	RetrieveLimit int // Default k when a caller doesn't specify one.

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() (Config, error) {
	cfg := Config{
		DBPath:        envStr("RB_DB_PATH", "reasoningbank.db"),
		BusyTimeout:   envDuration("RB_BUSY_TIMEOUT", 5*time.Second),
		RetrieveLimit: envInt("RB_RETRIEVE_LIMIT", 5),
		OTELEndpoint:  envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:  envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:   envStr("OTEL_SERVICE_NAME", "reasoningbank"),
		LogLevel:      envStr("RB_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: RB_DB_PATH is required")
	}
	if c.RetrieveLimit <= 0 {
		return fmt.Errorf("config: RB_RETRIEVE_LIMIT must be positive")
	}
	if c.BusyTimeout <= 0 {
		return fmt.Errorf("config: RB_BUSY_TIMEOUT must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: RB_LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
