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
	"github.com/tomtom215/portarius/internal/provider"
)

// ListIdentities returns all identities with their per-server users.
func (h *Handler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	identities, err := h.db.ListIdentities(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(identities)
}

// GetIdentity returns one identity.
func (h *Handler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	identity, err := h.db.GetIdentity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(rw, err)
		return
	}
	rw.Success(identity)
}

// EnableUser re-enables a user on its media server and locally.
func (h *Handler) EnableUser(w http.ResponseWriter, r *http.Request) {
	h.setUserEnabled(w, r, true)
}

// DisableUser disables a user on its media server and locally.
func (h *Handler) DisableUser(w http.ResponseWriter, r *http.Request) {
	h.setUserEnabled(w, r, false)
}

// setUserEnabled applies the enabled flag remotely first, then locally, so a
// provider failure leaves the local row untouched. Providers without
// enable/disable support only update the local row.
func (h *Handler) setUserEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	rw := NewResponseWriter(w, r)

	user, err := h.db.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	if err := h.applyRemoteEnabled(r, user, enabled); err != nil {
		writeDomainError(rw, err)
		return
	}
	if err := h.db.SetUserEnabled(r.Context(), user.ID, enabled); err != nil {
		writeDomainError(rw, err)
		return
	}

	user.Enabled = enabled
	rw.Success(user)
}

// applyRemoteEnabled performs the provider-side half of an enable/disable.
func (h *Handler) applyRemoteEnabled(r *http.Request, user *models.User, enabled bool) error {
	server, err := h.db.GetMediaServer(r.Context(), user.MediaServerID)
	if err != nil {
		return err
	}

	client, err := h.clients.CreateClientForServer(server)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if !client.Capabilities().Has(provider.CapEnableDisable) {
		logging.Ctx(r.Context()).Warn().
			Str("server_type", string(server.ServerType)).
			Str("user_id", user.ID).
			Msg("Provider cannot toggle accounts, updating local state only")
		return nil
	}

	found, err := client.SetUserEnabled(r.Context(), user.ExternalUserID, enabled)
	if err != nil {
		return err
	}
	if !found {
		logging.Ctx(r.Context()).Warn().
			Str("external_user_id", user.ExternalUserID).
			Msg("External account already gone while toggling enabled state")
	}
	return nil
}

// DeleteUser removes a user's external account and the local row. Deleting
// the last user of an identity removes the identity too.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	user, err := h.db.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	server, err := h.db.GetMediaServer(r.Context(), user.MediaServerID)
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	client, err := h.clients.CreateClientForServer(server)
	if err != nil {
		writeDomainError(rw, err)
		return
	}
	defer func() { _ = client.Close() }()

	// An already-deleted external account reports found=false, which is
	// success; only transport failures block the local delete.
	found, err := client.DeleteUser(r.Context(), user.ExternalUserID)
	if err != nil {
		writeDomainError(rw, err)
		return
	}
	if !found {
		logging.Ctx(r.Context()).Info().
			Str("external_user_id", user.ExternalUserID).
			Msg("External account already gone while deleting user")
	}

	if err := h.db.DeleteUser(r.Context(), user.ID); err != nil {
		writeDomainError(rw, err)
		return
	}
	rw.NoContent()
}
