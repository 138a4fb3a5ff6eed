// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package redemption

import (
	"fmt"

	"github.com/tomtom215/portarius/internal/models"
)

// ServerError is the single typed error a failed provisioning step surfaces.
// It names the failing server, the operation, and the provider sub-code when
// one exists. Raw transport errors never cross the saga boundary unwrapped.
type ServerError struct {
	ServerName string
	ServerType models.ServerType
	Op         string
	Code       string // provider sub-code, e.g. USERNAME_TAKEN; empty for service failures
	Err        error
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server %q (%s): %s failed: %s", e.ServerName, e.ServerType, e.Op, e.Code)
	}
	return fmt.Sprintf("server %q (%s): %s failed: %v", e.ServerName, e.ServerType, e.Op, e.Err)
}

// Unwrap returns the underlying provider error.
func (e *ServerError) Unwrap() error { return e.Err }
