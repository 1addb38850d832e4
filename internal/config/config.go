// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	// Server
	Addr string `env:"ADDR" envDefault:":8080"`

	// Storage
	DatabasePath string `env:"DATABASE_PATH" envDefault:"tidechat.db"`

	// Security
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080,http://localhost:3000"`

	// Rate Limiting (requests per second)
	RateLimitAPI int `env:"RATE_LIMIT_API" envDefault:"10"`
	RateLimitWS  int `env:"RATE_LIMIT_WS" envDefault:"5"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Reactions: enforce one reaction per (message, user, emoji)
	UniqueReactions bool `env:"UNIQUE_REACTIONS" envDefault:"false"`
}

// Load parses configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps the configured log level to a slog.Level. Unknown
// values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
