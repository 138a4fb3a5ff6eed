// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/portarius/internal/database"
	"github.com/tomtom215/portarius/internal/invitation"
	"github.com/tomtom215/portarius/internal/provider"
	"github.com/tomtom215/portarius/internal/redemption"
)

// writeDomainError maps a domain error onto an HTTP response. The mapping is
// centralized so every handler surfaces the same codes for the same causes.
func writeDomainError(rw *ResponseWriter, err error) {
	// Not-found sentinels.
	switch {
	case errors.Is(err, database.ErrInvitationNotFound):
		rw.NotFound("invitation not found")
		return
	case errors.Is(err, database.ErrServerNotFound):
		rw.NotFound("media server not found")
		return
	case errors.Is(err, database.ErrIdentityNotFound):
		rw.NotFound("identity not found")
		return
	case errors.Is(err, database.ErrUserNotFound):
		rw.NotFound("user not found")
		return
	case errors.Is(err, database.ErrCodeConflict):
		rw.Conflict("invitation code already exists")
		return
	case errors.Is(err, database.ErrAdminExists):
		rw.Error(http.StatusConflict, ErrCodeSetupComplete, "an administrator account already exists")
		return
	case errors.Is(err, database.ErrInvitationExhausted):
		rw.Error(http.StatusConflict, ErrCodeInvitationInvalid, "invitation is no longer valid")
		return
	}

	// Invitation validity failures carry the precise status.
	var validationErr *invitation.ValidationError
	if errors.As(err, &validationErr) {
		rw.ErrorWithDetails(http.StatusConflict, ErrCodeInvitationInvalid,
			"invitation is not valid", map[string]string{"status": string(validationErr.Status)})
		return
	}

	// Provisioning failures name the failing server; a provider sub-code
	// means the provider rejected the request rather than being down.
	var serverErr *redemption.ServerError
	if errors.As(err, &serverErr) {
		details := map[string]string{
			"server":      serverErr.ServerName,
			"server_type": string(serverErr.ServerType),
		}
		if serverErr.Code != "" {
			details["provider_code"] = serverErr.Code
			status := http.StatusBadRequest
			if serverErr.Code == provider.CodeUsernameTaken || serverErr.Code == provider.CodeAlreadyShared {
				status = http.StatusConflict
			}
			rw.ErrorWithDetails(status, ErrCodeProvisioningFailed, serverErr.Error(), details)
			return
		}
		rw.ErrorWithDetails(http.StatusBadGateway, ErrCodeExternalServiceFail,
			"media server unavailable: "+serverErr.ServerName, details)
		return
	}

	// Raw provider errors from admin operations (library sync, user
	// enable/disable) outside the saga.
	if ce, ok := provider.AsClientError(err); ok {
		rw.ErrorWithDetails(http.StatusBadGateway, ErrCodeExternalServiceFail,
			ce.Error(), map[string]string{"provider_code": ce.Code})
		return
	}
	if se, ok := provider.AsServiceError(err); ok {
		rw.Error(http.StatusBadGateway, ErrCodeExternalServiceFail, se.Error())
		return
	}

	var unknownType *provider.UnknownServerTypeError
	if errors.As(err, &unknownType) {
		rw.BadRequest(unknownType.Error())
		return
	}

	rw.DatabaseError(err)
}
