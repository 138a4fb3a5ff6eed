// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
registry.go - Provider descriptor registry

One Registry instance is built at process start and handed to consumers via
dependency injection; there is no package-level singleton and no runtime
plugin discovery. Each provider registers an immutable descriptor bundling
metadata, a client factory, the capability set and the join-flow description.
Re-registration under the same type overwrites.
*/

package provider

import (
	"os"
	"sync"
	"time"

	"github.com/tomtom215/portarius/internal/models"
)

// AuthStrategy describes how an administrator authenticates a provider.
type AuthStrategy string

// Admin auth strategies.
const (
	// AuthAPIKey means a server-local API key created in the admin UI.
	AuthAPIKey AuthStrategy = "api-key"

	// AuthAccountToken means an account-scoped token (plex.tv).
	AuthAccountToken AuthStrategy = "account-token"
)

// JoinFlow describes what the end-user join form needs for a provider.
type JoinFlow struct {
	// RequiresPassword is true when the provider hosts its own credentials.
	RequiresPassword bool

	// RequiresEmail is true when account creation is keyed by email.
	RequiresEmail bool

	// SupportsAuthToken is true when a provider-specific auth token can
	// short-circuit a pending-invite step.
	SupportsAuthToken bool
}

// ClientOptions carries everything a client factory needs. Construction
// performs no I/O.
type ClientOptions struct {
	URL     string
	APIKey  string
	Timeout time.Duration

	// ClientID is sent as the application identifier where the provider
	// requires one (Plex).
	ClientID string

	// RateLimitPerSecond throttles outbound requests; zero disables
	// client-side throttling.
	RateLimitPerSecond float64
}

// ClientFactory constructs a client for one provider.
type ClientFactory func(opts ClientOptions) MediaClient

// Descriptor is the immutable per-provider bundle held by the registry.
type Descriptor struct {
	Type        models.ServerType
	DisplayName string

	// CredentialEnvVar names the environment variable that, when set,
	// overrides the credential stored on a MediaServer row.
	CredentialEnvVar string

	Capabilities         CapabilitySet
	SupportedPermissions []string
	AuthStrategy         AuthStrategy
	JoinFlow             JoinFlow
	Factory              ClientFactory

	// Probe identifies this provider at a bare URL without credentials.
	// Nil excludes the provider from detection.
	Probe ProbeFunc
}

// Registry maps server types to provider descriptors.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[models.ServerType]Descriptor

	defaults ClientOptions
}

// NewRegistry creates an empty registry. defaults supplies per-process client
// settings (timeout, Plex client ID) merged into every CreateClient call.
func NewRegistry(defaults ClientOptions) *Registry {
	return &Registry{
		descriptors: make(map[models.ServerType]Descriptor),
		defaults:    defaults,
	}
}

// Register adds or overwrites a provider descriptor.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.Type] = d
}

// Types returns the registered server types.
func (r *Registry) Types() []models.ServerType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ServerType, 0, len(r.descriptors))
	for t := range r.descriptors {
		out = append(out, t)
	}
	return out
}

// Get returns the descriptor for a server type.
func (r *Registry) Get(serverType models.ServerType) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[serverType]
	if !ok {
		return Descriptor{}, &UnknownServerTypeError{ServerType: serverType}
	}
	return d, nil
}

// Capabilities returns the capability set declared for a server type.
func (r *Registry) Capabilities(serverType models.ServerType) (CapabilitySet, error) {
	d, err := r.Get(serverType)
	if err != nil {
		return CapabilitySet{}, err
	}
	return d.Capabilities, nil
}

// SupportedPermissions returns the permission keys a server type can apply.
func (r *Registry) SupportedPermissions(serverType models.ServerType) ([]string, error) {
	d, err := r.Get(serverType)
	if err != nil {
		return nil, err
	}
	return d.SupportedPermissions, nil
}

// CreateClient constructs a client for an explicit (url, apiKey) pair. Pure
// factory call; no connection is attempted.
func (r *Registry) CreateClient(serverType models.ServerType, url, apiKey string) (MediaClient, error) {
	d, err := r.Get(serverType)
	if err != nil {
		return nil, err
	}
	opts := r.defaults
	opts.URL = url
	opts.APIKey = apiKey
	return d.Factory(opts), nil
}

// CreateClientForServer constructs a client for a stored MediaServer,
// resolving the effective credential on every call: an environment variable
// named by the descriptor wins over the stored value, so credential rotation
// needs no restart.
func (r *Registry) CreateClientForServer(server *models.MediaServer) (MediaClient, error) {
	d, err := r.Get(server.ServerType)
	if err != nil {
		return nil, err
	}
	apiKey := server.APIKey
	if d.CredentialEnvVar != "" {
		if env := os.Getenv(d.CredentialEnvVar); env != "" {
			apiKey = env
		}
	}
	opts := r.defaults
	opts.URL = server.URL
	opts.APIKey = apiKey
	return d.Factory(opts), nil
}
