// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package api

import (
	"time"

	"github.com/tomtom215/portarius/internal/auth"
	"github.com/tomtom215/portarius/internal/config"
	"github.com/tomtom215/portarius/internal/database"
	"github.com/tomtom215/portarius/internal/provider"
	"github.com/tomtom215/portarius/internal/redemption"
)

// Handler carries the dependencies shared by all endpoint handlers.
type Handler struct {
	db       *database.DB
	registry *provider.Registry
	clients  provider.ServerClientSource
	saga     *redemption.Saga
	jwt      *auth.JWTManager
	cfg      *config.Config

	// startedAt feeds the health endpoint's uptime report.
	startedAt time.Time
}

// NewHandler wires the endpoint handlers.
func NewHandler(
	db *database.DB,
	registry *provider.Registry,
	clients provider.ServerClientSource,
	saga *redemption.Saga,
	jwt *auth.JWTManager,
	cfg *config.Config,
) *Handler {
	return &Handler{
		db:        db,
		registry:  registry,
		clients:   clients,
		saga:      saga,
		jwt:       jwt,
		cfg:       cfg,
		startedAt: time.Now(),
	}
}
