// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/portarius/internal/middleware"
)

// NewRouter assembles the full route tree.
//
// Route groups:
//   - /api/v1/join      public, strictly rate limited
//   - /api/v1/auth      login and first-run setup, strictly rate limited
//   - /api/v1/*         admin surface behind JWT
//   - /healthz, /metrics  unauthenticated infrastructure endpoints
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	rateLimit := httprate.LimitByIP(h.cfg.Security.RateLimitReqs, h.cfg.Security.RateLimitWindow)
	// Login and redemption both accept secrets; keep brute force slow.
	strictLimit := httprate.LimitByIP(10, time.Minute)

	// Infrastructure endpoints.
	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public join surface. No auth; the invitation code is the credential.
	r.Route("/api/v1/join", func(r chi.Router) {
		r.Use(middleware.Prometheus)
		r.Use(strictLimit)
		r.Get("/{code}", h.InvitationStatus)
		r.Post("/{code}", h.Redeem)
	})

	// Authentication and first-run setup.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.Prometheus)
		r.Use(strictLimit)
		r.Post("/login", h.Login)
		r.Post("/setup", h.Setup)
		r.Get("/setup", h.SetupStatus)
	})

	// Admin surface.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Prometheus)
		r.Use(rateLimit)
		r.Use(h.jwt.RequireAdmin)

		r.Get("/providers", h.ListProviders)

		r.Route("/servers", func(r chi.Router) {
			r.Get("/", h.ListServers)
			r.Post("/", h.CreateServer)
			r.Post("/test", h.TestServer)
			r.Post("/detect", h.DetectServer)
			r.Get("/{id}", h.GetServer)
			r.Put("/{id}", h.UpdateServer)
			r.Delete("/{id}", h.DeleteServer)
			r.Get("/{id}/libraries", h.ListServerLibraries)
			r.Post("/{id}/libraries/sync", h.SyncServerLibraries)
		})

		r.Route("/invitations", func(r chi.Router) {
			r.Get("/", h.ListInvitations)
			r.Post("/", h.CreateInvitation)
			r.Get("/{id}", h.GetInvitation)
			r.Patch("/{id}", h.UpdateInvitation)
			r.Delete("/{id}", h.DeleteInvitation)
		})

		r.Route("/identities", func(r chi.Router) {
			r.Get("/", h.ListIdentities)
			r.Get("/{id}", h.GetIdentity)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/{id}/enable", h.EnableUser)
			r.Post("/{id}/disable", h.DisableUser)
			r.Delete("/{id}", h.DeleteUser)
		})
	})

	return r
}
