// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
breaker.go - Circuit breaker wrapper

Wraps any MediaClient with a circuit breaker so a misbehaving provider stops
consuming request budget. One breaker per client instance; the saga creates
clients per server, so the breaker scope matches the connection scope.

DETERMINISM NOTE: the breaker uses real time (via sony/gobreaker) for its
interval and timeout calculations. Tests exercise the wrapped client
directly or inject failures through the inner fake.
*/

package provider

import (
	"context"
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/portarius/internal/logging"
	"github.com/tomtom215/portarius/internal/metrics"
	"github.com/tomtom215/portarius/internal/models"
)

// BreakerClient wraps a MediaClient with circuit breaker protection.
type BreakerClient struct {
	inner MediaClient
	cb    *gobreaker.CircuitBreaker[any]
	name  string
}

// Compile-time interface check.
var _ MediaClient = (*BreakerClient)(nil)

// NewBreakerClient wraps client with a circuit breaker.
// Breaker configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 30 second timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 5 requests
func NewBreakerClient(client MediaClient) *BreakerClient {
	name := string(client.Type()) + "-api"
	return &BreakerClient{inner: client, cb: newBreaker(name), name: name}
}

func newBreaker(name string) *gobreaker.CircuitBreaker[any] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		// Provider rejections (bad request, name taken) are not service
		// failures and must not trip the breaker.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var ce *ClientError
			return errors.As(err, &ce)
		},
	})
}

// breakerStateValue converts a gobreaker state to a metric gauge value.
func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// execute runs fn through the breaker and records request metrics.
func (b *BreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		err = &ServiceError{ServerType: b.inner.Type(), Op: "circuit breaker", Err: err}
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return result, err
}

// Type returns the wrapped client's provider discriminator.
func (b *BreakerClient) Type() models.ServerType { return b.inner.Type() }

// Capabilities passes through; capability introspection is stateless.
func (b *BreakerClient) Capabilities() CapabilitySet { return b.inner.Capabilities() }

// SupportedPermissions passes through.
func (b *BreakerClient) SupportedPermissions() []string { return b.inner.SupportedPermissions() }

// TestConnection runs through the breaker; a rejected request counts as
// unreachable.
func (b *BreakerClient) TestConnection(ctx context.Context) bool {
	result, err := b.execute(func() (any, error) {
		if !b.inner.TestConnection(ctx) {
			return false, errors.New("connection test failed")
		}
		return true, nil
	})
	if err != nil {
		return false
	}
	ok, _ := result.(bool)
	return ok
}

// GetServerInfo runs through the breaker.
func (b *BreakerClient) GetServerInfo(ctx context.Context) (*models.ServerInfo, error) {
	result, err := b.execute(func() (any, error) { return b.inner.GetServerInfo(ctx) })
	if err != nil {
		return nil, err
	}
	return result.(*models.ServerInfo), nil
}

// GetLibraries runs through the breaker.
func (b *BreakerClient) GetLibraries(ctx context.Context) ([]RemoteLibrary, error) {
	result, err := b.execute(func() (any, error) { return b.inner.GetLibraries(ctx) })
	if err != nil {
		return nil, err
	}
	return result.([]RemoteLibrary), nil
}

// CreateUser runs through the breaker.
func (b *BreakerClient) CreateUser(ctx context.Context, user NewUser) (*ExternalUser, error) {
	result, err := b.execute(func() (any, error) { return b.inner.CreateUser(ctx, user) })
	if err != nil {
		return nil, err
	}
	return result.(*ExternalUser), nil
}

// DeleteUser runs through the breaker.
func (b *BreakerClient) DeleteUser(ctx context.Context, externalID string) (bool, error) {
	result, err := b.execute(func() (any, error) { return b.inner.DeleteUser(ctx, externalID) })
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// SetUserEnabled runs through the breaker.
func (b *BreakerClient) SetUserEnabled(ctx context.Context, externalID string, enabled bool) (bool, error) {
	result, err := b.execute(func() (any, error) { return b.inner.SetUserEnabled(ctx, externalID, enabled) })
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// SetLibraryAccess runs through the breaker.
func (b *BreakerClient) SetLibraryAccess(ctx context.Context, externalID string, libraryIDs []string) (bool, error) {
	result, err := b.execute(func() (any, error) { return b.inner.SetLibraryAccess(ctx, externalID, libraryIDs) })
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// UpdatePermissions runs through the breaker.
func (b *BreakerClient) UpdatePermissions(ctx context.Context, externalID string, permissions map[string]bool) (bool, error) {
	result, err := b.execute(func() (any, error) { return b.inner.UpdatePermissions(ctx, externalID, permissions) })
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// ListUsers runs through the breaker.
func (b *BreakerClient) ListUsers(ctx context.Context) ([]ExternalUser, error) {
	result, err := b.execute(func() (any, error) { return b.inner.ListUsers(ctx) })
	if err != nil {
		return nil, err
	}
	return result.([]ExternalUser), nil
}

// Close closes the wrapped client.
func (b *BreakerClient) Close() error { return b.inner.Close() }

// ServerClientSource produces a client for a stored media server.
type ServerClientSource interface {
	CreateClientForServer(server *models.MediaServer) (MediaClient, error)
}

// BreakerSource decorates a ServerClientSource so every produced client
// shares one circuit breaker per stored server. Clients are scoped to a
// single block of operations, but breaker state must outlive them or no
// breaker would ever accumulate enough samples to trip.
type BreakerSource struct {
	inner ServerClientSource

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewBreakerSource wraps a client source with per-server circuit breakers.
func NewBreakerSource(inner ServerClientSource) *BreakerSource {
	return &BreakerSource{
		inner:    inner,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// CreateClientForServer produces a breaker-wrapped client for the server.
func (s *BreakerSource) CreateClientForServer(server *models.MediaServer) (MediaClient, error) {
	client, err := s.inner.CreateClientForServer(server)
	if err != nil {
		return nil, err
	}

	name := string(server.ServerType) + "-" + server.Name

	s.mu.Lock()
	cb, ok := s.breakers[server.ID]
	if !ok {
		cb = newBreaker(name)
		s.breakers[server.ID] = cb
	}
	s.mu.Unlock()

	return &BreakerClient{inner: client, cb: cb, name: name}, nil
}
