// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
client.go - Universal media client interface

MediaClient is the per-provider adapter contract. Capability and
supported-permission introspection is stateless; everything else runs against
the remote server. A client is a scoped resource: acquired from the registry
immediately before a server's block of operations and closed immediately
after, never shared across servers.
*/

package provider

import (
	"context"

	"github.com/tomtom215/portarius/internal/models"
)

// ExternalUser is an account on a remote provider, identified by a
// provider-assigned ID. It is unowned until wrapped by a local User row.
type ExternalUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// RemoteLibrary is a library (section/media folder) as reported by the
// provider's own API.
type RemoteLibrary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// NewUser carries the inputs for account creation.
type NewUser struct {
	Username string
	Password string
	Email    string

	// AuthToken is provider-specific. For Plex it is the invited account's
	// own token, used to accept the share immediately instead of leaving a
	// pending invite.
	AuthToken string
}

// MediaClient is the universal adapter interface implemented once per
// provider.
//
// Boolean-returning mutators follow one convention everywhere: false with a
// nil error means the target was already absent; a non-nil error means the
// operation genuinely failed. Callers use this to tell "already gone" from
// "unreachable".
type MediaClient interface {
	// Type returns the provider discriminator.
	Type() models.ServerType

	// Capabilities returns the declared capability set. Stateless.
	Capabilities() CapabilitySet

	// SupportedPermissions returns the permission keys this provider can
	// apply. Stateless.
	SupportedPermissions() []string

	// TestConnection reports whether the server answers with the configured
	// credentials. Never returns an error; any failure is false.
	TestConnection(ctx context.Context) bool

	// GetServerInfo fetches the server's self-reported identity.
	GetServerInfo(ctx context.Context) (*models.ServerInfo, error)

	// GetLibraries lists the server's libraries.
	GetLibraries(ctx context.Context) ([]RemoteLibrary, error)

	// CreateUser provisions an account. Known conflicts surface as a
	// ClientError with a sub-code such as USERNAME_TAKEN.
	CreateUser(ctx context.Context, user NewUser) (*ExternalUser, error)

	// DeleteUser removes an account. Returns false when the ID is unknown.
	DeleteUser(ctx context.Context, externalID string) (bool, error)

	// SetUserEnabled enables or disables an account. Returns false when the
	// ID is unknown.
	SetUserEnabled(ctx context.Context, externalID string, enabled bool) (bool, error)

	// SetLibraryAccess restricts an account to the given library IDs. An
	// empty list revokes all access. Returns false when the ID is unknown.
	SetLibraryAccess(ctx context.Context, externalID string, libraryIDs []string) (bool, error)

	// UpdatePermissions changes only the supplied permission keys. Returns
	// false when the ID is unknown.
	UpdatePermissions(ctx context.Context, externalID string, permissions map[string]bool) (bool, error)

	// ListUsers lists the provider's accounts.
	ListUsers(ctx context.Context) ([]ExternalUser, error)

	// Close releases the client's network resources.
	Close() error
}
