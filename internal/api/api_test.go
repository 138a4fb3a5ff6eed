// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portarius/internal/auth"
	"github.com/tomtom215/portarius/internal/config"
	"github.com/tomtom215/portarius/internal/database"
	"github.com/tomtom215/portarius/internal/models"
	"github.com/tomtom215/portarius/internal/provider"
	"github.com/tomtom215/portarius/internal/redemption"
)

// DuckDB in-memory instances are heavyweight; run API suites one at a time.
var apiDBSemaphore = make(chan struct{}, 1)

// stubClient answers provider calls without a network.
type stubClient struct {
	serverType models.ServerType
	nextID     atomic.Int64
	deleted    []string
}

func (c *stubClient) Type() models.ServerType { return c.serverType }

func (c *stubClient) Capabilities() provider.CapabilitySet {
	return provider.NewCapabilitySet(
		provider.CapCreateUser, provider.CapDeleteUser, provider.CapEnableDisable,
		provider.CapLibraryAccess, provider.CapDownloadControl,
	)
}

func (c *stubClient) SupportedPermissions() []string {
	return []string{provider.PermStream, provider.PermDownload}
}

func (c *stubClient) TestConnection(_ context.Context) bool { return true }

func (c *stubClient) GetServerInfo(_ context.Context) (*models.ServerInfo, error) {
	return &models.ServerInfo{Name: "stub", Version: "1.0", ID: "stub-1"}, nil
}

func (c *stubClient) GetLibraries(_ context.Context) ([]provider.RemoteLibrary, error) {
	return []provider.RemoteLibrary{
		{ID: "lib-movies", Name: "Movies"},
		{ID: "lib-shows", Name: "Shows"},
	}, nil
}

func (c *stubClient) CreateUser(_ context.Context, user provider.NewUser) (*provider.ExternalUser, error) {
	return &provider.ExternalUser{
		ID:       fmt.Sprintf("ext-%d", c.nextID.Add(1)),
		Username: user.Username,
	}, nil
}

func (c *stubClient) DeleteUser(_ context.Context, externalID string) (bool, error) {
	c.deleted = append(c.deleted, externalID)
	return true, nil
}

func (c *stubClient) SetUserEnabled(_ context.Context, _ string, _ bool) (bool, error) {
	return true, nil
}

func (c *stubClient) SetLibraryAccess(_ context.Context, _ string, _ []string) (bool, error) {
	return true, nil
}

func (c *stubClient) UpdatePermissions(_ context.Context, _ string, _ map[string]bool) (bool, error) {
	return true, nil
}

func (c *stubClient) ListUsers(_ context.Context) ([]provider.ExternalUser, error) {
	return nil, nil
}

func (c *stubClient) Close() error { return nil }

// stubSource returns one stub client per server ID.
type stubSource struct {
	clients map[string]*stubClient
}

func (s *stubSource) CreateClientForServer(server *models.MediaServer) (provider.MediaClient, error) {
	client, ok := s.clients[server.ID]
	if !ok {
		client = &stubClient{serverType: server.ServerType}
		s.clients[server.ID] = client
	}
	return client, nil
}

type testEnv struct {
	server *httptest.Server
	db     *database.DB
	source *stubSource
	token  string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	apiDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-apiDBSemaphore })

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		Security: config.SecurityConfig{
			JWTSecret:       "test-secret-at-least-32-characters!!",
			SessionTimeout:  time.Hour,
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Providers: config.ProvidersConfig{
			RequestTimeout: 5 * time.Second,
			DetectTimeout:  time.Second,
		},
	}

	registry := provider.NewRegistry(provider.ClientOptions{Timeout: cfg.Providers.RequestTimeout})
	provider.RegisterBuiltins(registry)

	source := &stubSource{clients: make(map[string]*stubClient)}
	saga := redemption.New(db, source, nil)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	handler := NewHandler(db, registry, source, saga, jwtManager, cfg)
	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)

	token, err := jwtManager.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	return &testEnv{server: server, db: db, source: source, token: token}
}

// do sends a JSON request and decodes the envelope.
func (env *testEnv) do(t *testing.T, method, path string, body any, authed bool) (int, APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, env.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+env.token)
	}

	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope APIResponse
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode, envelope
}

// decodeData re-marshals the envelope's data into a typed struct.
func decodeData(t *testing.T, envelope APIResponse, dst any) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

func (env *testEnv) createServer(t *testing.T, name string) models.MediaServer {
	t.Helper()
	status, envelope := env.do(t, http.MethodPost, "/api/v1/servers", models.CreateServerRequest{
		Name: name, ServerType: "jellyfin", URL: "http://" + name + ".local:8096", APIKey: "k",
	}, true)
	if status != http.StatusCreated {
		t.Fatalf("create server: status %d", status)
	}
	var server models.MediaServer
	decodeData(t, envelope, &server)
	return server
}

func (env *testEnv) createInvitation(t *testing.T, req models.CreateInvitationRequest) models.Invitation {
	t.Helper()
	status, envelope := env.do(t, http.MethodPost, "/api/v1/invitations", req, true)
	if status != http.StatusCreated {
		t.Fatalf("create invitation: status %d, error %+v", status, envelope.Error)
	}
	var inv models.Invitation
	decodeData(t, envelope, &inv)
	return inv
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	env := setupTestEnv(t)

	status, envelope := env.do(t, http.MethodGet, "/api/v1/servers", nil, false)
	if status != http.StatusUnauthorized {
		t.Fatalf("status: got %d", status)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeUnauthorized {
		t.Errorf("unexpected error: %+v", envelope.Error)
	}
}

func TestSetupAndLoginFlow(t *testing.T) {
	env := setupTestEnv(t)

	status, envelope := env.do(t, http.MethodGet, "/api/v1/auth/setup", nil, false)
	if status != http.StatusOK {
		t.Fatalf("setup status: got %d", status)
	}
	var setupState map[string]bool
	decodeData(t, envelope, &setupState)
	if !setupState["setup_required"] {
		t.Fatal("expected setup_required=true on fresh database")
	}

	status, _ = env.do(t, http.MethodPost, "/api/v1/auth/setup",
		models.LoginRequest{Username: "root", Password: "bootstrap-pw"}, false)
	if status != http.StatusCreated {
		t.Fatalf("setup: got %d", status)
	}

	// Second setup attempt is rejected.
	status, envelope = env.do(t, http.MethodPost, "/api/v1/auth/setup",
		models.LoginRequest{Username: "intruder", Password: "whatever-pw"}, false)
	if status != http.StatusConflict {
		t.Fatalf("second setup: got %d", status)
	}
	if envelope.Error.Code != ErrCodeSetupComplete {
		t.Errorf("code: got %s", envelope.Error.Code)
	}

	// Wrong password and unknown username look identical.
	status, _ = env.do(t, http.MethodPost, "/api/v1/auth/login",
		models.LoginRequest{Username: "root", Password: "wrong"}, false)
	if status != http.StatusUnauthorized {
		t.Fatalf("bad login: got %d", status)
	}
	status, _ = env.do(t, http.MethodPost, "/api/v1/auth/login",
		models.LoginRequest{Username: "ghost", Password: "wrong"}, false)
	if status != http.StatusUnauthorized {
		t.Fatalf("unknown user login: got %d", status)
	}

	status, envelope = env.do(t, http.MethodPost, "/api/v1/auth/login",
		models.LoginRequest{Username: "root", Password: "bootstrap-pw"}, false)
	if status != http.StatusOK {
		t.Fatalf("login: got %d", status)
	}
	var login models.LoginResponse
	decodeData(t, envelope, &login)
	if login.Token == "" {
		t.Error("expected a bearer token")
	}
}

func TestServerLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	server := env.createServer(t, "den")
	if server.ID == "" {
		t.Fatal("expected generated server ID")
	}
	// Initial library sync ran against the stub.
	if len(server.Libraries) != 2 {
		t.Errorf("expected 2 synced libraries, got %d", len(server.Libraries))
	}

	status, envelope := env.do(t, http.MethodGet, "/api/v1/servers", nil, true)
	if status != http.StatusOK {
		t.Fatalf("list: got %d", status)
	}
	var servers []models.MediaServer
	decodeData(t, envelope, &servers)
	if len(servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(servers))
	}

	status, _ = env.do(t, http.MethodPost, "/api/v1/servers/"+server.ID+"/libraries/sync", nil, true)
	if status != http.StatusOK {
		t.Fatalf("sync: got %d", status)
	}

	status, _ = env.do(t, http.MethodDelete, "/api/v1/servers/"+server.ID, nil, true)
	if status != http.StatusNoContent {
		t.Fatalf("delete: got %d", status)
	}
	status, _ = env.do(t, http.MethodGet, "/api/v1/servers/"+server.ID, nil, true)
	if status != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", status)
	}
}

func TestCreateServerRejectsUnknownType(t *testing.T) {
	env := setupTestEnv(t)

	status, envelope := env.do(t, http.MethodPost, "/api/v1/servers", models.CreateServerRequest{
		Name: "x", ServerType: "kodi", URL: "http://x.local", APIKey: "k",
	}, true)
	if status != http.StatusBadRequest {
		t.Fatalf("status: got %d", status)
	}
	if envelope.Error.Code != ErrCodeValidationFailed {
		t.Errorf("code: got %s", envelope.Error.Code)
	}
}

func TestInvitationLifecycleAndRedemption(t *testing.T) {
	env := setupTestEnv(t)
	server := env.createServer(t, "den")

	maxUses := 1
	inv := env.createInvitation(t, models.CreateInvitationRequest{
		ServerIDs: []string{server.ID},
		MaxUses:   &maxUses,
	})
	if len(inv.Code) != 12 {
		t.Fatalf("expected 12-char code, got %q", inv.Code)
	}
	if len(inv.Servers) != 1 {
		t.Fatalf("expected 1 linked server, got %d", len(inv.Servers))
	}

	// Public status check.
	status, envelope := env.do(t, http.MethodGet, "/api/v1/join/"+inv.Code, nil, false)
	if status != http.StatusOK {
		t.Fatalf("status check: got %d", status)
	}
	var statusResp models.InvitationStatusResponse
	decodeData(t, envelope, &statusResp)
	if !statusResp.Valid || statusResp.Status != "VALID" {
		t.Errorf("unexpected status: %+v", statusResp)
	}

	// Redeem.
	status, envelope = env.do(t, http.MethodPost, "/api/v1/join/"+inv.Code, models.RedeemRequest{
		Username: "alice1", Password: "longenough",
	}, false)
	if status != http.StatusCreated {
		t.Fatalf("redeem: got %d, error %+v", status, envelope.Error)
	}
	var redeemed models.RedeemResponse
	decodeData(t, envelope, &redeemed)
	if len(redeemed.Users) != 1 {
		t.Fatalf("expected 1 provisioned user, got %d", len(redeemed.Users))
	}

	// The invitation is now exhausted.
	status, envelope = env.do(t, http.MethodPost, "/api/v1/join/"+inv.Code, models.RedeemRequest{
		Username: "bob22", Password: "longenough",
	}, false)
	if status != http.StatusConflict {
		t.Fatalf("second redeem: got %d", status)
	}
	if envelope.Error.Code != ErrCodeInvitationInvalid {
		t.Errorf("code: got %s", envelope.Error.Code)
	}

	// Identity shows up in the admin surface.
	status, envelope = env.do(t, http.MethodGet, "/api/v1/identities", nil, true)
	if status != http.StatusOK {
		t.Fatalf("identities: got %d", status)
	}
	var identities []models.Identity
	decodeData(t, envelope, &identities)
	if len(identities) != 1 || identities[0].Username != "alice1" {
		t.Fatalf("unexpected identities: %+v", identities)
	}
}

func TestRedeemUnknownCodeIs404(t *testing.T) {
	env := setupTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/join/NOSUCHCODEXX", models.RedeemRequest{
		Username: "alice1", Password: "longenough",
	}, false)
	if status != http.StatusNotFound {
		t.Fatalf("status: got %d", status)
	}
}

func TestRedeemValidationFailure(t *testing.T) {
	env := setupTestEnv(t)
	server := env.createServer(t, "den")
	inv := env.createInvitation(t, models.CreateInvitationRequest{ServerIDs: []string{server.ID}})

	status, envelope := env.do(t, http.MethodPost, "/api/v1/join/"+inv.Code, models.RedeemRequest{
		Username: "a", Password: "short",
	}, false)
	if status != http.StatusBadRequest {
		t.Fatalf("status: got %d", status)
	}
	if envelope.Error.Code != ErrCodeValidationFailed {
		t.Errorf("code: got %s", envelope.Error.Code)
	}
}

func TestUpdateInvitationDisables(t *testing.T) {
	env := setupTestEnv(t)
	server := env.createServer(t, "den")
	inv := env.createInvitation(t, models.CreateInvitationRequest{ServerIDs: []string{server.ID}})

	disabled := false
	status, _ := env.do(t, http.MethodPatch, "/api/v1/invitations/"+inv.ID,
		models.UpdateInvitationRequest{Enabled: &disabled}, true)
	if status != http.StatusOK {
		t.Fatalf("patch: got %d", status)
	}

	status, envelope := env.do(t, http.MethodGet, "/api/v1/join/"+inv.Code, nil, false)
	if status != http.StatusOK {
		t.Fatalf("status check: got %d", status)
	}
	var statusResp models.InvitationStatusResponse
	decodeData(t, envelope, &statusResp)
	if statusResp.Valid || statusResp.Status != "DISABLED" {
		t.Errorf("expected DISABLED, got %+v", statusResp)
	}
}

func TestUserDisableAndDelete(t *testing.T) {
	env := setupTestEnv(t)
	server := env.createServer(t, "den")
	inv := env.createInvitation(t, models.CreateInvitationRequest{ServerIDs: []string{server.ID}})

	status, envelope := env.do(t, http.MethodPost, "/api/v1/join/"+inv.Code, models.RedeemRequest{
		Username: "alice1", Password: "longenough",
	}, false)
	if status != http.StatusCreated {
		t.Fatalf("redeem: got %d", status)
	}
	var redeemed models.RedeemResponse
	decodeData(t, envelope, &redeemed)
	userID := redeemed.Users[0].ID

	status, envelope = env.do(t, http.MethodPost, "/api/v1/users/"+userID+"/disable", nil, true)
	if status != http.StatusOK {
		t.Fatalf("disable: got %d", status)
	}
	var user models.User
	decodeData(t, envelope, &user)
	if user.Enabled {
		t.Error("expected user disabled")
	}

	status, _ = env.do(t, http.MethodDelete, "/api/v1/users/"+userID, nil, true)
	if status != http.StatusNoContent {
		t.Fatalf("delete: got %d", status)
	}

	// External account was deleted on the stub.
	stub := env.source.clients[server.ID]
	if len(stub.deleted) != 1 {
		t.Errorf("expected 1 external deletion, got %v", stub.deleted)
	}

	// Last user removed, identity is gone too.
	status, envelope = env.do(t, http.MethodGet, "/api/v1/identities", nil, true)
	if status != http.StatusOK {
		t.Fatalf("identities: got %d", status)
	}
	var identities []models.Identity
	decodeData(t, envelope, &identities)
	if len(identities) != 0 {
		t.Errorf("expected no identities, got %d", len(identities))
	}
}

func TestListProviders(t *testing.T) {
	env := setupTestEnv(t)

	status, envelope := env.do(t, http.MethodGet, "/api/v1/providers", nil, true)
	if status != http.StatusOK {
		t.Fatalf("status: got %d", status)
	}
	var providers []providerInfo
	decodeData(t, envelope, &providers)
	if len(providers) != 3 {
		t.Fatalf("expected 3 providers, got %d", len(providers))
	}
	// Sorted by type: emby, jellyfin, plex.
	if providers[0].Type != "emby" || providers[2].Type != "plex" {
		t.Errorf("unexpected order: %+v", providers)
	}
	for _, p := range providers {
		if !p.Detectable {
			t.Errorf("provider %s should be detectable", p.Type)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	status, envelope := env.do(t, http.MethodGet, "/healthz", nil, false)
	if status != http.StatusOK {
		t.Fatalf("status: got %d", status)
	}
	var body map[string]interface{}
	decodeData(t, envelope, &body)
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %+v", body)
	}
}
