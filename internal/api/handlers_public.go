// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/portarius/internal/logging"
	"github.com/tomtom215/portarius/internal/models"
	"github.com/tomtom215/portarius/internal/redemption"
	"github.com/tomtom215/portarius/internal/validation"
)

// InvitationStatus reports whether an invitation code can currently be
// redeemed. Public; reveals only the validity status, never the invitation's
// configuration.
func (h *Handler) InvitationStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	code := chi.URLParam(r, "code")

	_, status, err := h.saga.Validate(r.Context(), code)
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	rw.Success(models.InvitationStatusResponse{
		Code:   code,
		Status: string(status),
		Valid:  status.IsValid(),
	})
}

// Redeem runs the redemption saga for an invitation code.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	code := chi.URLParam(r, "code")

	var req models.RedeemRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		apiErr := err.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	identity, err := h.saga.Redeem(r.Context(), redemption.Request{
		Code:      code,
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		AuthToken: req.AuthToken,
	})
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("code", code).Msg("Redemption failed")
		writeDomainError(rw, err)
		return
	}

	rw.Created(models.RedeemResponse{
		Identity: *identity,
		Users:    identity.Users,
	})
}
