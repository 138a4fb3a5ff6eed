// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package models

// Request/response types for the HTTP API. Validation tags are enforced by
// internal/validation before any handler logic runs.

// RedeemRequest is the public request to redeem an invitation code.
type RedeemRequest struct {
	Username string `json:"username" validate:"required,min=2,max=64,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`

	// AuthToken is a provider-specific token for flows that skip a pending
	// invite step (e.g. Plex direct share with an authenticated account).
	AuthToken string `json:"auth_token,omitempty"`
}

// RedeemResponse is returned on successful redemption.
type RedeemResponse struct {
	Identity Identity `json:"identity"`
	Users    []User   `json:"users"`
}

// InvitationStatusResponse is the public validity check response.
type InvitationStatusResponse struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Valid  bool   `json:"valid"`
}

// CreateInvitationRequest creates a new invitation.
type CreateInvitationRequest struct {
	ServerIDs    []string        `json:"server_ids" validate:"required,min=1,dive,uuid4"`
	LibraryIDs   []string        `json:"library_ids,omitempty" validate:"omitempty,dive,uuid4"`
	ExpiresInHrs *int            `json:"expires_in_hours,omitempty" validate:"omitempty,gt=0"`
	MaxUses      *int            `json:"max_uses,omitempty" validate:"omitempty,gt=0"`
	DurationDays *int            `json:"duration_days,omitempty" validate:"omitempty,gt=0"`
	Permissions  map[string]bool `json:"permissions,omitempty"`
}

// UpdateInvitationRequest toggles or adjusts an existing invitation.
type UpdateInvitationRequest struct {
	Enabled *bool `json:"enabled,omitempty"`
	MaxUses *int  `json:"max_uses,omitempty" validate:"omitempty,gt=0"`
}

// CreateServerRequest registers a media server.
type CreateServerRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=100"`
	ServerType string `json:"server_type" validate:"required,oneof=plex jellyfin emby"`
	URL        string `json:"url" validate:"required,url"`
	APIKey     string `json:"api_key" validate:"required"`
	Enabled    *bool  `json:"enabled,omitempty"`
}

// TestServerRequest tests connectivity without persisting anything.
type TestServerRequest struct {
	ServerType string `json:"server_type" validate:"required,oneof=plex jellyfin emby"`
	URL        string `json:"url" validate:"required,url"`
	APIKey     string `json:"api_key" validate:"required"`
}

// DetectServerRequest asks the detector which server type answers at a URL.
type DetectServerRequest struct {
	URL    string `json:"url" validate:"required,url"`
	APIKey string `json:"api_key" validate:"required"`
}

// DetectServerResponse reports the detected server type.
type DetectServerResponse struct {
	ServerType string `json:"server_type"`
	ServerName string `json:"server_name,omitempty"`
	Version    string `json:"version,omitempty"`
}

// LoginRequest authenticates an administrator.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}
