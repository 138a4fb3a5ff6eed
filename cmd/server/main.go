// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

// Command server runs the Portarius daemon: the HTTP API, the expiry
// sweeper and the event audit logger under one supervision tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/portarius/internal/api"
	"github.com/tomtom215/portarius/internal/auth"
	"github.com/tomtom215/portarius/internal/config"
	"github.com/tomtom215/portarius/internal/database"
	"github.com/tomtom215/portarius/internal/events"
	"github.com/tomtom215/portarius/internal/expiry"
	"github.com/tomtom215/portarius/internal/logging"
	"github.com/tomtom215/portarius/internal/models"
	"github.com/tomtom215/portarius/internal/provider"
	"github.com/tomtom215/portarius/internal/redemption"
	"github.com/tomtom215/portarius/internal/supervisor"
)

var version = "dev" // set via -ldflags at build time

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Fatal error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Portarius")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	registry := provider.NewRegistry(provider.ClientOptions{
		Timeout:            cfg.Providers.RequestTimeout,
		ClientID:           cfg.Providers.Plex.ClientID,
		RateLimitPerSecond: cfg.Providers.Plex.RateLimitPerSecond,
	})
	provider.RegisterBuiltins(registry)

	// Breaker state is shared per stored server across short-lived clients.
	clients := provider.NewBreakerSource(registry)

	bus := events.NewBus()
	defer func() { _ = bus.Close() }()

	saga := redemption.New(db, clients, bus)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return fmt.Errorf("initialize auth: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrapAdmin(ctx, db, cfg); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	handler := api.NewHandler(db, registry, clients, saga, jwtManager, cfg)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.Add(supervisor.NewHTTPService(httpServer, supervisor.DefaultTreeConfig().ShutdownTimeout))
	tree.Add(events.NewAuditLogger(bus))
	if cfg.Expiry.Enabled {
		tree.Add(expiry.NewSweeper(db, clients, &cfg.Expiry))
	}

	logging.Info().Str("addr", httpServer.Addr).Msg("Listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}

// bootstrapAdmin creates the initial administrator from configuration when
// one is supplied and no admin exists yet. Losing the bootstrap race to the
// setup endpoint or another replica is not an error.
func bootstrapAdmin(ctx context.Context, db *database.DB, cfg *config.Config) error {
	username := cfg.Security.AdminUsername
	password := cfg.Security.AdminPassword
	if username == "" || password == "" {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.Admin{Username: username, PasswordHash: hash}
	if err := db.CreateFirstAdmin(ctx, admin); err != nil {
		if errors.Is(err, database.ErrAdminExists) {
			logging.Debug().Msg("Admin already exists, skipping bootstrap")
			return nil
		}
		return err
	}

	logging.Info().Str("username", username).Msg("Bootstrapped administrator from configuration")
	return nil
}
