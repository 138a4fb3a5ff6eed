// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

// Package supervisor wires the long-running services (HTTP server, expiry
// sweeper, event subscribers) into a suture supervision tree. A crashing
// service is restarted with exponential backoff instead of taking the
// process down.
package supervisor

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration. Zero values fall back to
// suture's documented defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns production defaults matching suture's own.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the root supervisor for all long-running services.
type Tree struct {
	root   *suture.Supervisor
	config TreeConfig
}

// NewTree creates the root supervisor.
func NewTree(config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	root := suture.New("portarius", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	})

	return &Tree{root: root, config: config}
}

// Add registers a service with the root supervisor.
func (t *Tree) Add(service suture.Service) {
	t.root.Add(service)
}

// Serve runs the tree until ctx is cancelled, then shuts all services down.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}
