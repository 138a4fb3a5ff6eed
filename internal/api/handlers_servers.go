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

	"github.com/tomtom215/portarius/internal/logging"
	"github.com/tomtom215/portarius/internal/models"
	"github.com/tomtom215/portarius/internal/provider"
	"github.com/tomtom215/portarius/internal/validation"
)

// ListServers returns all registered media servers.
func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	servers, err := h.db.ListMediaServers(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(servers)
}

// GetServer returns one media server with its mirrored libraries.
func (h *Handler) GetServer(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	server, err := h.db.GetMediaServer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(rw, err)
		return
	}
	rw.Success(server)
}

// CreateServer registers a media server and performs an initial library sync.
func (h *Handler) CreateServer(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.CreateServerRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		apiErr := err.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	serverType := models.ServerType(req.ServerType)
	if _, err := h.registry.Get(serverType); err != nil {
		writeDomainError(rw, err)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	server := &models.MediaServer{
		Name:       req.Name,
		ServerType: serverType,
		URL:        req.URL,
		APIKey:     req.APIKey,
		Enabled:    enabled,
	}
	if err := h.db.CreateMediaServer(r.Context(), server); err != nil {
		rw.DatabaseError(err)
		return
	}

	// Initial library sync is best effort; the server may be temporarily
	// unreachable and can be synced later.
	if libraries, err := h.fetchRemoteLibraries(r, server); err == nil {
		if err := h.db.ReplaceLibraries(r.Context(), server.ID, libraries); err == nil {
			server.Libraries = libraries
		}
	} else {
		logging.Ctx(r.Context()).Warn().Err(err).
			Str("server", server.Name).
			Msg("Initial library sync failed")
	}

	rw.Created(server)
}

// UpdateServer modifies a registered media server.
func (h *Handler) UpdateServer(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	server, err := h.db.GetMediaServer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	var req models.CreateServerRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		apiErr := err.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	server.Name = req.Name
	server.ServerType = models.ServerType(req.ServerType)
	server.URL = req.URL
	server.APIKey = req.APIKey
	if req.Enabled != nil {
		server.Enabled = *req.Enabled
	}

	if err := h.db.UpdateMediaServer(r.Context(), server); err != nil {
		writeDomainError(rw, err)
		return
	}
	rw.Success(server)
}

// DeleteServer removes a media server and its library mirror.
func (h *Handler) DeleteServer(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.db.DeleteMediaServer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(rw, err)
		return
	}
	rw.NoContent()
}

// TestServer checks connectivity with supplied credentials without
// persisting anything.
func (h *Handler) TestServer(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.TestServerRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		apiErr := err.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	client, err := h.registry.CreateClient(models.ServerType(req.ServerType), req.URL, req.APIKey)
	if err != nil {
		writeDomainError(rw, err)
		return
	}
	defer func() { _ = client.Close() }()

	start := time.Now()
	response := models.MediaServerTestResponse{}
	if info, err := client.GetServerInfo(r.Context()); err != nil {
		response.Error = err.Error()
	} else {
		response.Success = true
		response.ServerName = info.Name
		response.Version = info.Version
	}
	response.LatencyMs = time.Since(start).Milliseconds()

	rw.Success(response)
}

// DetectServer probes a URL and reports which provider answers there.
func (h *Handler) DetectServer(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req models.DetectServerRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid request body")
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		apiErr := err.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	result, err := h.registry.DetectServerType(r.Context(), req.URL, h.cfg.Providers.DetectTimeout)
	if err != nil {
		if errors.Is(err, provider.ErrNoServerDetected) {
			rw.NotFound("no known media server answered at that URL")
			return
		}
		rw.InternalError("detection failed")
		return
	}

	response := models.DetectServerResponse{ServerType: string(result.ServerType)}
	if result.ServerInfo != nil {
		response.ServerName = result.ServerInfo.Name
		response.Version = result.ServerInfo.Version
	}
	rw.Success(response)
}

// ListServerLibraries returns the locally mirrored libraries of a server.
func (h *Handler) ListServerLibraries(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	serverID := chi.URLParam(r, "id")
	if _, err := h.db.GetMediaServer(r.Context(), serverID); err != nil {
		writeDomainError(rw, err)
		return
	}

	libraries, err := h.db.ListLibraries(r.Context(), serverID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(libraries)
}

// SyncServerLibraries refreshes the library mirror from the remote server.
func (h *Handler) SyncServerLibraries(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	server, err := h.db.GetMediaServer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(rw, err)
		return
	}

	libraries, err := h.fetchRemoteLibraries(r, server)
	if err != nil {
		writeDomainError(rw, err)
		return
	}
	if err := h.db.ReplaceLibraries(r.Context(), server.ID, libraries); err != nil {
		rw.DatabaseError(err)
		return
	}

	synced, err := h.db.ListLibraries(r.Context(), server.ID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(synced)
}

// fetchRemoteLibraries pulls the remote library list through a scoped client.
func (h *Handler) fetchRemoteLibraries(r *http.Request, server *models.MediaServer) ([]models.Library, error) {
	client, err := h.clients.CreateClientForServer(server)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	remote, err := client.GetLibraries(r.Context())
	if err != nil {
		return nil, err
	}

	libraries := make([]models.Library, 0, len(remote))
	for _, lib := range remote {
		libraries = append(libraries, models.Library{
			MediaServerID: server.ID,
			ExternalID:    lib.ID,
			Name:          lib.Name,
			Enabled:       true,
		})
	}
	return libraries, nil
}
