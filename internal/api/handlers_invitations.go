// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/portarius/internal/database"
	"github.com/tomtom215/portarius/internal/invitation"
	"github.com/tomtom215/portarius/internal/logging"
	"github.com/tomtom215/portarius/internal/models"
	"github.com/tomtom215/portarius/internal/validation"
)

// ListInvitations returns all invitations with their linked servers.
func (h *Handler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	invitations, err := h.db.ListInvitations(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(invitations)
}

// GetInvitation returns one invitation.
func (h *Handler) GetInvitation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	inv, err := h.db.GetInvitation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(rw, err)
		return
	}
	rw.Success(inv)
}

// CreateInvitation creates an invitation with a freshly generated code.
func (h *Handler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.CreateInvitationRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		apiErr := err.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	// Every target server must exist before the invitation is persisted.
	for _, serverID := range req.ServerIDs {
		if _, err := h.db.GetMediaServer(r.Context(), serverID); err != nil {
			writeDomainError(rw, err)
			return
		}
	}

	inv := &models.Invitation{
		Enabled:      true,
		MaxUses:      req.MaxUses,
		DurationDays: req.DurationDays,
		Permissions:  req.Permissions,
	}
	if req.ExpiresInHrs != nil {
		expiresAt := time.Now().Add(time.Duration(*req.ExpiresInHrs) * time.Hour)
		inv.ExpiresAt = &expiresAt
	}

	// Code collisions are astronomically rare (32^12 space) but the UNIQUE
	// constraint can still fire; regenerate instead of surfacing a conflict.
	var createErr error
	for attempt := 0; attempt < 3; attempt++ {
		code, err := invitation.GenerateCode()
		if err != nil {
			rw.InternalError("failed to generate invitation code")
			return
		}
		inv.Code = code

		createErr = h.db.CreateInvitation(r.Context(), inv, req.ServerIDs, req.LibraryIDs)
		if !errors.Is(createErr, database.ErrCodeConflict) {
			break
		}
	}
	if createErr != nil {
		writeDomainError(rw, createErr)
		return
	}

	created, err := h.db.GetInvitation(r.Context(), inv.ID)
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("code", created.Code).
		Int("servers", len(created.Servers)).
		Msg("Invitation created")
	rw.Created(created)
}

// UpdateInvitation toggles or adjusts an existing invitation. Server and
// library links are preserved; only the mutable knobs change.
func (h *Handler) UpdateInvitation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	inv, err := h.db.GetInvitation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	var req models.UpdateInvitationRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		apiErr := err.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	if req.Enabled != nil {
		inv.Enabled = *req.Enabled
	}
	if req.MaxUses != nil {
		inv.MaxUses = req.MaxUses
	}

	serverIDs := make([]string, 0, len(inv.Servers))
	for _, server := range inv.Servers {
		serverIDs = append(serverIDs, server.ID)
	}
	libraryIDs := make([]string, 0, len(inv.Libraries))
	for _, lib := range inv.Libraries {
		libraryIDs = append(libraryIDs, lib.ID)
	}

	if err := h.db.UpdateInvitation(r.Context(), inv, serverIDs, libraryIDs); err != nil {
		writeDomainError(rw, err)
		return
	}
	rw.Success(inv)
}

// DeleteInvitation removes an invitation. Accounts already provisioned from
// it are unaffected.
func (h *Handler) DeleteInvitation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.db.DeleteInvitation(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(rw, err)
		return
	}
	rw.NoContent()
}
