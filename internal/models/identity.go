// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package models

import "time"

// Identity is the local aggregate root for one person. It owns the User rows
// produced by a single redemption, one per provisioned server.
type Identity struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email,omitempty" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Users []User `json:"users,omitempty" db:"-"`
}

// User joins an Identity to one provisioned external account. User rows for a
// redemption are created as an atomic group; deleting the last User of an
// Identity deletes the Identity.
type User struct {
	ID             string     `json:"id" db:"id"`
	IdentityID     string     `json:"identity_id" db:"identity_id"`
	MediaServerID  string     `json:"media_server_id" db:"media_server_id"`
	ExternalUserID string     `json:"external_user_id" db:"external_user_id"`
	Username       string     `json:"username" db:"username"`
	Email          string     `json:"email,omitempty" db:"email"`
	Enabled        bool       `json:"enabled" db:"enabled"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	InvitationID   string     `json:"invitation_id" db:"invitation_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Admin is a local administrator account. Only the bcrypt hash of the
// password is stored.
type Admin struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
