// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

// Package expiry removes or disables provisioned accounts whose membership
// duration has elapsed. A supervised sweeper polls for users past their
// expires_at and applies the configured action remotely first, locally
// second, so a provider failure retries on the next sweep.
package expiry

import (
	"context"
	"time"

	"github.com/tomtom215/portarius/internal/config"
	"github.com/tomtom215/portarius/internal/database"
	"github.com/tomtom215/portarius/internal/logging"
	"github.com/tomtom215/portarius/internal/metrics"
	"github.com/tomtom215/portarius/internal/models"
	"github.com/tomtom215/portarius/internal/provider"
)

// Expiry actions.
const (
	ActionDisable = "disable"
	ActionDelete  = "delete"
)

// Sweeper is a suture service that periodically processes expired users.
type Sweeper struct {
	db      *database.DB
	clients provider.ServerClientSource
	cfg     *config.ExpiryConfig

	// now is the clock; overridable in tests.
	now func() time.Time
}

// NewSweeper creates an expiry sweeper.
func NewSweeper(db *database.DB, clients provider.ServerClientSource, cfg *config.ExpiryConfig) *Sweeper {
	return &Sweeper{
		db:      db,
		clients: clients,
		cfg:     cfg,
		now:     time.Now,
	}
}

// String names the service in supervisor logs.
func (s *Sweeper) String() string { return "expiry-sweeper" }

// Serve runs the sweep loop until the context is cancelled. An immediate
// first sweep catches users that expired while the process was down.
func (s *Sweeper) Serve(ctx context.Context) error {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	s.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep processes every currently expired user. Per-user failures are logged
// and counted; the sweep continues so one unreachable server cannot stall
// expiry on the others.
func (s *Sweeper) sweep(ctx context.Context) {
	metrics.ExpirySweepsTotal.Inc()

	users, err := s.db.ListExpiredUsers(ctx, s.now())
	if err != nil {
		logging.Error().Err(err).Msg("Expiry sweep failed to list users")
		return
	}
	if len(users) == 0 {
		return
	}

	logging.Info().Int("count", len(users)).Str("action", s.cfg.Action).Msg("Processing expired users")
	for i := range users {
		user := users[i]
		if err := s.processUser(ctx, &user); err != nil {
			metrics.ExpiredUsersProcessed.WithLabelValues(s.cfg.Action, "error").Inc()
			logging.Error().Err(err).
				Str("user_id", user.ID).
				Str("username", user.Username).
				Msg("Failed to process expired user")
			continue
		}
		metrics.ExpiredUsersProcessed.WithLabelValues(s.cfg.Action, "ok").Inc()
		logging.Info().
			Str("user_id", user.ID).
			Str("username", user.Username).
			Str("action", s.cfg.Action).
			Msg("Expired user processed")
	}
}

// processUser applies the configured action to one expired user.
func (s *Sweeper) processUser(ctx context.Context, user *models.User) error {
	server, err := s.db.GetMediaServer(ctx, user.MediaServerID)
	if err != nil {
		return err
	}

	client, err := s.clients.CreateClientForServer(server)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	switch s.cfg.Action {
	case ActionDelete:
		// found=false means the account is already gone remotely, which
		// still warrants removing the local row.
		if _, err := client.DeleteUser(ctx, user.ExternalUserID); err != nil {
			return err
		}
		return s.db.DeleteUser(ctx, user.ID)
	default:
		// Providers without enable/disable (Plex shares) fall back to
		// revoking the share entirely; a disabled share does not exist.
		if client.Capabilities().Has(provider.CapEnableDisable) {
			if _, err := client.SetUserEnabled(ctx, user.ExternalUserID, false); err != nil {
				return err
			}
		} else {
			if _, err := client.DeleteUser(ctx, user.ExternalUserID); err != nil {
				return err
			}
		}
		return s.db.SetUserEnabled(ctx, user.ID, false)
	}
}
