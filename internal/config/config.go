// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

// Package config provides configuration management for the application.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
	Providers ProvidersConfig `koanf:"providers"`
	Expiry    ExpiryConfig    `koanf:"expiry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development or production
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	SessionTimeout  time.Duration `koanf:"session_timeout"`
	AdminUsername   string        `koanf:"admin_username"`
	AdminPassword   string        `koanf:"admin_password"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ProvidersConfig holds settings shared by all provider clients.
type ProvidersConfig struct {
	// RequestTimeout bounds every outbound provider API request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// DetectTimeout bounds each candidate probe during server type detection.
	DetectTimeout time.Duration `koanf:"detect_timeout"`

	// Plex settings for plex.tv operations.
	Plex PlexProviderConfig `koanf:"plex"`
}

// PlexProviderConfig holds Plex-specific client settings.
type PlexProviderConfig struct {
	// ClientID is sent as X-Plex-Client-Identifier.
	ClientID string `koanf:"client_id"`

	// RateLimitPerSecond throttles plex.tv requests. plex.tv enforces
	// aggressive rate limits on the sharing endpoints.
	RateLimitPerSecond float64 `koanf:"rate_limit_per_second"`
}

// ExpiryConfig holds expired-membership sweeper settings.
type ExpiryConfig struct {
	Enabled bool `koanf:"enabled"`

	// Interval between sweeps for users past their expires_at.
	Interval time.Duration `koanf:"interval"`

	// Action taken on expiry: "disable" or "delete".
	Action string `koanf:"action"`
}

// Validate checks configuration invariants that cannot be expressed as
// defaults. It is called once after loading.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Expiry.Action != "disable" && c.Expiry.Action != "delete" {
		return fmt.Errorf("invalid expiry action %q (want disable or delete)", c.Expiry.Action)
	}
	if c.Server.Environment == "production" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("jwt_secret must be at least 32 characters in production")
	}
	return nil
}
