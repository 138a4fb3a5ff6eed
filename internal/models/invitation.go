// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package models

import "time"

// Invitation is an invitation code that lets an end user self-provision
// accounts on one or more target media servers.
//
// Invariant: UseCount never exceeds MaxUses when MaxUses is set. The
// redemption engine is the only writer of UseCount.
type Invitation struct {
	ID        string     `json:"id" db:"id"`
	Code      string     `json:"code" db:"code"`
	Enabled   bool       `json:"enabled" db:"enabled"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	MaxUses   *int       `json:"max_uses,omitempty" db:"max_uses"`
	UseCount  int        `json:"use_count" db:"use_count"`

	// DurationDays bounds the lifetime of memberships created from this
	// invitation. Nil means no expiry.
	DurationDays *int `json:"duration_days,omitempty" db:"duration_days"`

	// Permissions overrides the default permission bundle applied to
	// provisioned accounts. Only the keys present replace defaults.
	Permissions map[string]bool `json:"permissions,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Servers are the provisioning targets, in configured order.
	Servers []MediaServer `json:"servers,omitempty" db:"-"`

	// Libraries restricts provisioned accounts to a subset of each target
	// server's libraries. Empty means full access.
	Libraries []Library `json:"libraries,omitempty" db:"-"`
}

// LibrariesForServer returns the external IDs of the invitation's allowed
// libraries belonging to the given server. restricted is false when the
// invitation holds no library rows for that server, meaning the provisioned
// account gets the server's default (full) access.
func (inv *Invitation) LibrariesForServer(serverID string) (ids []string, restricted bool) {
	for _, lib := range inv.Libraries {
		if lib.MediaServerID == serverID {
			ids = append(ids, lib.ExternalID)
		}
	}
	return ids, len(ids) > 0
}
