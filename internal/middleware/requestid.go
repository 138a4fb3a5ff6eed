// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

// Package middleware provides HTTP middleware shared by all routes: request
// ID propagation, request logging and Prometheus instrumentation.
package middleware

import (
	"net/http"

	"github.com/tomtom215/portarius/internal/logging"
)

// RequestID assigns each request a unique ID, honoring an X-Request-ID set
// by an upstream proxy. The ID is echoed in the response header and attached
// to the request context for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
