// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

// Package models provides data models for the application.
package models

import "time"

// ServerType identifies which provider adapter applies to a media server.
type ServerType string

// Supported server types.
const (
	ServerTypePlex     ServerType = "plex"
	ServerTypeJellyfin ServerType = "jellyfin"
	ServerTypeEmby     ServerType = "emby"
)

// String returns the server type as a plain string.
func (s ServerType) String() string { return string(s) }

// MediaServer represents a media server configuration stored in the database.
type MediaServer struct {
	ID         string     `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	ServerType ServerType `json:"server_type" db:"server_type"`
	URL        string     `json:"url" db:"url"`
	APIKey     string     `json:"-" db:"api_key"` // Never expose credentials
	Enabled    bool       `json:"enabled" db:"enabled"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`

	// Libraries mirrors the server's library list, refreshed on demand.
	Libraries []Library `json:"libraries,omitempty" db:"-"`
}

// Library is a locally mirrored library row owned by a MediaServer.
// ExternalID is the provider-assigned section/folder identifier.
type Library struct {
	ID            string    `json:"id" db:"id"`
	MediaServerID string    `json:"media_server_id" db:"media_server_id"`
	ExternalID    string    `json:"external_id" db:"external_id"`
	Name          string    `json:"name" db:"name"`
	Enabled       bool      `json:"enabled" db:"enabled"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// MediaServerTestResponse is the response from a connectivity test.
type MediaServerTestResponse struct {
	Success    bool   `json:"success"`
	LatencyMs  int64  `json:"latency_ms"`
	ServerName string `json:"server_name,omitempty"`
	Version    string `json:"version,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ServerInfo describes a remote server as reported by its own API.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	ID      string `json:"id"`
}
