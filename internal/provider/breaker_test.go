// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/portarius/internal/models"
)

// fakeClient is a scriptable MediaClient for breaker tests.
type fakeClient struct {
	serverType models.ServerType

	createErr error
	deleteErr error
	closed    bool
	calls     int
}

func (f *fakeClient) Type() models.ServerType { return f.serverType }

func (f *fakeClient) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapCreateUser, CapDeleteUser)
}

func (f *fakeClient) SupportedPermissions() []string { return []string{PermDownload} }

func (f *fakeClient) TestConnection(_ context.Context) bool { return f.createErr == nil }

func (f *fakeClient) GetServerInfo(_ context.Context) (*models.ServerInfo, error) {
	return &models.ServerInfo{Name: "fake"}, nil
}

func (f *fakeClient) GetLibraries(_ context.Context) ([]RemoteLibrary, error) {
	return []RemoteLibrary{{ID: "1", Name: "Movies"}}, nil
}

func (f *fakeClient) CreateUser(_ context.Context, user NewUser) (*ExternalUser, error) {
	f.calls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &ExternalUser{ID: "ext-1", Username: user.Username}, nil
}

func (f *fakeClient) DeleteUser(_ context.Context, _ string) (bool, error) {
	f.calls++
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return true, nil
}

func (f *fakeClient) SetUserEnabled(_ context.Context, _ string, _ bool) (bool, error) {
	return true, nil
}

func (f *fakeClient) SetLibraryAccess(_ context.Context, _ string, _ []string) (bool, error) {
	return true, nil
}

func (f *fakeClient) UpdatePermissions(_ context.Context, _ string, _ map[string]bool) (bool, error) {
	return true, nil
}

func (f *fakeClient) ListUsers(_ context.Context) ([]ExternalUser, error) {
	return nil, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	fake := &fakeClient{serverType: models.ServerTypeJellyfin}
	breaker := NewBreakerClient(fake)

	created, err := breaker.CreateUser(context.Background(), NewUser{Username: "alice"})

	checkNoError(t, err)
	checkStringEqual(t, "created.ID", created.ID, "ext-1")
	checkStringEqual(t, "created.Username", created.Username, "alice")
}

func TestBreakerStatelessMethodsBypass(t *testing.T) {
	fake := &fakeClient{serverType: models.ServerTypeEmby}
	breaker := NewBreakerClient(fake)

	checkStringEqual(t, "type", string(breaker.Type()), "emby")
	checkTrue(t, "CapCreateUser", breaker.Capabilities().Has(CapCreateUser))
	checkSliceLen(t, "permissions", len(breaker.SupportedPermissions()), 1)

	checkNoError(t, breaker.Close())
	checkTrue(t, "inner closed", fake.closed)
}

func TestBreakerOpensOnServiceFailures(t *testing.T) {
	fake := &fakeClient{
		serverType: models.ServerTypeJellyfin,
		createErr: &ServiceError{
			ServerType: models.ServerTypeJellyfin,
			Op:         "POST /Users/New",
			Err:        errors.New("connection refused"),
		},
	}
	breaker := NewBreakerClient(fake)

	// Five consecutive service failures trip the breaker.
	for i := 0; i < 5; i++ {
		_, err := breaker.CreateUser(context.Background(), NewUser{Username: "alice"})
		checkError(t, err)
	}

	callsBefore := fake.calls
	_, err := breaker.CreateUser(context.Background(), NewUser{Username: "alice"})

	checkError(t, err)
	se, ok := AsServiceError(err)
	checkTrue(t, "rejection is ServiceError", ok)
	checkStringEqual(t, "rejection op", se.Op, "circuit breaker")
	checkIntEqual(t, "inner calls after open", fake.calls, callsBefore)
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	fake := &fakeClient{
		serverType: models.ServerTypeJellyfin,
		createErr: &ClientError{
			ServerType: models.ServerTypeJellyfin,
			Op:         "POST /Users/New",
			Code:       CodeUsernameTaken,
			Message:    "name taken",
		},
	}
	breaker := NewBreakerClient(fake)

	// Provider rejections never trip the breaker regardless of volume.
	for i := 0; i < 20; i++ {
		_, err := breaker.CreateUser(context.Background(), NewUser{Username: "alice"})
		checkClientErrorCode(t, err, CodeUsernameTaken)
	}
	checkIntEqual(t, "inner calls", fake.calls, 20)
}

// fakeSource returns a fresh fake client per call, mimicking the registry.
type fakeSource struct {
	clients []*fakeClient
}

func (s *fakeSource) CreateClientForServer(server *models.MediaServer) (MediaClient, error) {
	client := &fakeClient{
		serverType: server.ServerType,
		createErr: &ServiceError{
			ServerType: server.ServerType,
			Op:         "POST /Users/New",
			Err:        errors.New("connection refused"),
		},
	}
	s.clients = append(s.clients, client)
	return client, nil
}

func TestBreakerSourceSharesStateAcrossClients(t *testing.T) {
	source := NewBreakerSource(&fakeSource{})
	server := &models.MediaServer{ID: "srv-1", Name: "den", ServerType: models.ServerTypeJellyfin}

	// Five failures through five separate short-lived clients.
	for i := 0; i < 5; i++ {
		client, err := source.CreateClientForServer(server)
		checkNoError(t, err)
		_, err = client.CreateUser(context.Background(), NewUser{Username: "alice"})
		checkError(t, err)
		checkNoError(t, client.Close())
	}

	// A sixth client against the same server inherits the open breaker.
	client, err := source.CreateClientForServer(server)
	checkNoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = client.CreateUser(context.Background(), NewUser{Username: "alice"})
	se, ok := AsServiceError(err)
	checkTrue(t, "rejection is ServiceError", ok)
	checkStringEqual(t, "rejection op", se.Op, "circuit breaker")

	// A different server gets its own breaker, still closed.
	other := &models.MediaServer{ID: "srv-2", Name: "loft", ServerType: models.ServerTypeJellyfin}
	otherClient, err := source.CreateClientForServer(other)
	checkNoError(t, err)
	defer func() { _ = otherClient.Close() }()

	_, err = otherClient.CreateUser(context.Background(), NewUser{Username: "alice"})
	checkError(t, err)
	if se, ok := AsServiceError(err); ok && se.Op == "circuit breaker" {
		t.Error("fresh server should not inherit another server's breaker state")
	}
}

func TestBreakerDeleteUserPassThrough(t *testing.T) {
	fake := &fakeClient{serverType: models.ServerTypeEmby}
	breaker := NewBreakerClient(fake)

	removed, err := breaker.DeleteUser(context.Background(), "ext-1")

	checkNoError(t, err)
	checkTrue(t, "removed", removed)
}
