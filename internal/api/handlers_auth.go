// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/portarius/internal/auth"
	"github.com/tomtom215/portarius/internal/database"
	"github.com/tomtom215/portarius/internal/logging"
	"github.com/tomtom215/portarius/internal/models"
	"github.com/tomtom215/portarius/internal/validation"
)

// Login authenticates an administrator and issues a bearer token.
//
// Unknown usernames and wrong passwords produce the same response so the
// endpoint does not reveal which usernames exist.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		apiErr := err.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	admin, err := h.db.GetAdminByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, database.ErrAdminNotFound) {
			rw.Unauthorized("invalid credentials")
			return
		}
		rw.DatabaseError(err)
		return
	}
	if !auth.CheckPassword(admin.PasswordHash, req.Password) {
		logging.Ctx(r.Context()).Warn().Str("username", req.Username).Msg("Failed login attempt")
		rw.Unauthorized("invalid credentials")
		return
	}

	token, err := h.jwt.GenerateToken(admin.Username)
	if err != nil {
		rw.InternalError("failed to issue token")
		return
	}

	rw.Success(models.LoginResponse{
		Token:     token,
		ExpiresIn: int64(h.jwt.Timeout().Seconds()),
	})
}

// Setup creates the first administrator account. Succeeds exactly once; all
// later calls return 409 regardless of concurrency.
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		apiErr := err.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	if len(req.Password) < 8 {
		rw.BadRequest("password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		rw.InternalError("failed to hash password")
		return
	}

	admin := &models.Admin{Username: req.Username, PasswordHash: hash}
	if err := h.db.CreateFirstAdmin(r.Context(), admin); err != nil {
		writeDomainError(rw, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("username", admin.Username).Msg("First administrator created")
	rw.Created(map[string]string{"username": admin.Username})
}

// SetupStatus reports whether first-run setup is still open.
func (h *Handler) SetupStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	count, err := h.db.CountAdmins(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(map[string]bool{"setup_required": count == 0})
}
