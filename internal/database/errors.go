// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package database

import (
	"errors"
	"strings"
)

// Sentinel errors surfaced by the data access layer.
var (
	ErrServerNotFound     = errors.New("media server not found")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrAdminNotFound      = errors.New("admin not found")

	// ErrCodeConflict means an invitation with this code already exists.
	ErrCodeConflict = errors.New("invitation code already exists")

	// ErrAdminExists means the first-admin bootstrap lost the race: an
	// admin row already exists.
	ErrAdminExists = errors.New("admin account already exists")

	// ErrInvitationExhausted means the conditional use-count increment
	// matched no row: the invitation hit max_uses between validation and
	// redemption.
	ErrInvitationExhausted = errors.New("invitation has no uses remaining")
)

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// DuckDB unique constraint error messages contain "UNIQUE constraint" or "Duplicate key"
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "unique constraint") || strings.Contains(errMsg, "duplicate key")
}
