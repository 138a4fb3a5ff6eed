// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package config

import (
	"strings"
	"testing"
	"time"
)

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"DUCKDB_PATH", "database.path"},
		{"HTTP_PORT", "server.port"},
		{"HTTP_HOST", "server.host"},
		{"JWT_SECRET", "security.jwt_secret"},
		{"ADMIN_USERNAME", "security.admin_username"},
		{"LOG_LEVEL", "logging.level"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"EXPIRY_ACTION", "expiry.action"},
		{"SERVER_TIMEOUT", "server.timeout"},
		{"PROVIDERS_DETECT_TIMEOUT", "providers.detect_timeout"},
		{"PLEX_CLIENT_ID", "providers.plex.client_id"},
		{"PATH", ""},
		{"HOME", ""},
		{"SOME_RANDOM_VAR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 5690 {
		t.Errorf("default port = %d, want 5690", cfg.Server.Port)
	}
	if cfg.Providers.RequestTimeout != 30*time.Second {
		t.Errorf("default request timeout = %v, want 30s", cfg.Providers.RequestTimeout)
	}
	if cfg.Expiry.Action != "disable" {
		t.Errorf("default expiry action = %q, want disable", cfg.Expiry.Action)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database path is required",
		},
		{
			name:    "bad expiry action",
			mutate:  func(c *Config) { c.Expiry.Action = "purge" },
			wantErr: "invalid expiry action",
		},
		{
			name: "short jwt secret in production",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Security.JWTSecret = "short"
			},
			wantErr: "jwt_secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[0] != "https://a.example" {
		t.Errorf("cors origins = %v, want two trimmed entries", cfg.Security.CORSOrigins)
	}
}
