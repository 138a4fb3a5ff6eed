// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
errors.go - Typed provider errors

Two error classes cross the adapter boundary:

  - ClientError: the provider is reachable but rejected the operation.
    Carries a machine-readable sub-code (e.g. USERNAME_TAKEN).
  - ServiceError: the provider is unreachable, timed out, or failed
    server-side.

"Already absent" is never an error: delete/enable/library/permission
operations return false for unknown external IDs. The redemption rollback
logic depends on that distinction.
*/

package provider

import (
	"errors"
	"fmt"

	"github.com/tomtom215/portarius/internal/models"
)

// Sub-codes carried by ClientError.
const (
	// CodeUsernameTaken means an account with the requested name exists.
	CodeUsernameTaken = "USERNAME_TAKEN"

	// CodeAlreadyShared means the server is already shared with the user.
	CodeAlreadyShared = "ALREADY_SHARED"

	// CodeInvalidCredentials means the configured API key was rejected.
	CodeInvalidCredentials = "INVALID_CREDENTIALS"

	// CodeInvalidRequest covers other provider-side rejections.
	CodeInvalidRequest = "INVALID_REQUEST"
)

// ClientError is returned when a provider rejects a specific operation.
type ClientError struct {
	ServerType models.ServerType
	Op         string
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	return fmt.Sprintf("%s %s: %s (%s)", e.ServerType, e.Op, e.Message, e.Code)
}

// ServiceError is returned when a provider cannot be reached or fails
// server-side.
type ServiceError struct {
	ServerType models.ServerType
	Op         string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.ServerType, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.ServerType, e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *ServiceError) Unwrap() error { return e.Err }

// UnknownServerTypeError is raised by the registry for unregistered types.
type UnknownServerTypeError struct {
	ServerType models.ServerType
}

// Error implements the error interface.
func (e *UnknownServerTypeError) Error() string {
	return fmt.Sprintf("unknown server type %q", e.ServerType)
}

// AsClientError unwraps err to a *ClientError if one is in the chain.
func AsClientError(err error) (*ClientError, bool) {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// AsServiceError unwraps err to a *ServiceError if one is in the chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
