// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
validity.go - Invitation validity evaluation

An invitation's status is a pure function of (enabled, expires_at, max_uses,
use_count) evaluated against a supplied clock. The check order is fixed:
DISABLED before EXPIRED before MAX_USES_REACHED before VALID. Callers get one
deterministic reason even when several conditions hold at once.
*/

package invitation

import (
	"time"

	"github.com/tomtom215/portarius/internal/models"
)

// Status is the evaluated state of an invitation.
type Status string

// Invitation statuses, in evaluation priority order.
const (
	StatusDisabled       Status = "DISABLED"
	StatusExpired        Status = "EXPIRED"
	StatusMaxUsesReached Status = "MAX_USES_REACHED"
	StatusValid          Status = "VALID"
)

// IsValid reports whether the status permits redemption.
func (s Status) IsValid() bool { return s == StatusValid }

// Evaluate returns the invitation's status at the given instant.
func Evaluate(inv *models.Invitation, now time.Time) Status {
	if !inv.Enabled {
		return StatusDisabled
	}
	if inv.ExpiresAt != nil && !now.Before(*inv.ExpiresAt) {
		return StatusExpired
	}
	if inv.MaxUses != nil && inv.UseCount >= *inv.MaxUses {
		return StatusMaxUsesReached
	}
	return StatusValid
}

// ValidationError is raised when an invitation cannot be redeemed. Status
// carries the single failing condition.
type ValidationError struct {
	Code   string
	Status Status
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invitation " + e.Code + ": " + string(e.Status)
}

// Check returns nil when the invitation is redeemable and a ValidationError
// naming the first failing condition otherwise.
func Check(inv *models.Invitation, now time.Time) error {
	if status := Evaluate(inv, now); !status.IsValid() {
		return &ValidationError{Code: inv.Code, Status: status}
	}
	return nil
}
