// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portarius/internal/logging"
)

type contextKey string

const claimsKey contextKey = "auth_claims"

// ClaimsFromContext retrieves the authenticated admin's claims. Returns nil
// outside a RequireAdmin-protected handler.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// RequireAdmin is chi middleware that rejects requests without a valid
// Bearer token. On success the claims are attached to the request context.
func (m *JWTManager) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeUnauthorized(w, r, "missing bearer token")
			return
		}

		claims, err := m.ValidateToken(token)
		if err != nil {
			logging.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected bearer token")
			writeUnauthorized(w, r, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeUnauthorized emits the API's error envelope without importing the api
// package, which would create an import cycle.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)

	body := map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":       "UNAUTHORIZED",
			"message":    message,
			"request_id": logging.RequestIDFromContext(r.Context()),
		},
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
