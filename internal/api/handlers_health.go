// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package api

import (
	"net/http"
	"time"
)

// Health reports process and database health. Returns 503 when the database
// ping fails so orchestrators can restart the process.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	status := "ok"
	dbStatus := "ok"
	if err := h.db.Health(r.Context()); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}

	body := map[string]interface{}{
		"status":         status,
		"database":       dbStatus,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if status != "ok" {
		rw.writeJSON(http.StatusServiceUnavailable, APIResponse{Success: false, Data: body})
		return
	}
	rw.Success(body)
}
