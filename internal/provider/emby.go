// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
emby.go - Emby adapter

Implements MediaClient against the Emby REST API using an admin API key.
Emby and Jellyfin share API ancestry but diverge in authentication headers
and policy details, so each gets its own adapter.

Capability notes: full capability set. Permission keys map onto user policy
fields via read-modify-write, matching the Jellyfin adapter's merge
semantics. Unsupported keys are skipped with a warning.
*/

package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portarius/internal/logging"
	"github.com/tomtom215/portarius/internal/models"
)

// embyPermissionPolicy maps universal permission keys to Emby user policy
// fields.
var embyPermissionPolicy = map[string]string{
	PermStream:    "EnableMediaPlayback",
	PermDownload:  "EnableContentDownloading",
	PermTranscode: "EnableVideoPlaybackTranscoding",
	PermSync:      "EnableSyncTranscoding",
}

// EmbyClient implements MediaClient for Emby servers.
type EmbyClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time interface check.
var _ MediaClient = (*EmbyClient)(nil)

// NewEmbyClient creates a new Emby adapter. No I/O is performed.
func NewEmbyClient(opts ClientOptions) MediaClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EmbyClient{
		baseURL:    strings.TrimSuffix(opts.URL, "/"),
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Type returns the provider discriminator.
func (c *EmbyClient) Type() models.ServerType { return models.ServerTypeEmby }

// Capabilities returns the full capability set.
func (c *EmbyClient) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapCreateUser, CapDeleteUser, CapEnableDisable, CapLibraryAccess, CapDownloadControl)
}

// SupportedPermissions returns the permission keys Emby can apply.
func (c *EmbyClient) SupportedPermissions() []string {
	return []string{PermStream, PermDownload, PermTranscode, PermSync}
}

// embyUser is the subset of the Emby user model the adapter needs.
type embyUser struct {
	ID     string         `json:"Id"`
	Name   string         `json:"Name"`
	Policy map[string]any `json:"Policy,omitempty"`
}

// TestConnection reports whether the server answers with the configured key.
func (c *EmbyClient) TestConnection(ctx context.Context) bool {
	_, err := c.GetServerInfo(ctx)
	return err == nil
}

// GetServerInfo fetches /System/Info.
func (c *EmbyClient) GetServerInfo(ctx context.Context) (*models.ServerInfo, error) {
	var info struct {
		ServerName string `json:"ServerName"`
		Version    string `json:"Version"`
		ID         string `json:"Id"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/System/Info", nil, &info); err != nil {
		return nil, err
	}
	return &models.ServerInfo{Name: info.ServerName, Version: info.Version, ID: info.ID}, nil
}

// GetLibraries lists the server's media folders.
func (c *EmbyClient) GetLibraries(ctx context.Context) ([]RemoteLibrary, error) {
	var result struct {
		Items []struct {
			ID             string `json:"Id"`
			Name           string `json:"Name"`
			CollectionType string `json:"CollectionType"`
		} `json:"Items"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/Library/MediaFolders", nil, &result); err != nil {
		return nil, err
	}
	libraries := make([]RemoteLibrary, 0, len(result.Items))
	for _, item := range result.Items {
		libraries = append(libraries, RemoteLibrary{ID: item.ID, Name: item.Name, Type: item.CollectionType})
	}
	return libraries, nil
}

// CreateUser provisions an account via POST /Users/New.
func (c *EmbyClient) CreateUser(ctx context.Context, user NewUser) (*ExternalUser, error) {
	body := map[string]string{
		"Name":     user.Username,
		"Password": user.Password,
	}
	var created embyUser
	if err := c.doRequest(ctx, http.MethodPost, "/Users/New", body, &created); err != nil {
		return nil, err
	}
	return &ExternalUser{ID: created.ID, Username: created.Name, Email: user.Email}, nil
}

// DeleteUser removes an account. An unknown ID returns false, not an error.
func (c *EmbyClient) DeleteUser(ctx context.Context, externalID string) (bool, error) {
	err := c.doRequest(ctx, http.MethodDelete, "/Users/"+externalID, nil, nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetUserEnabled toggles the IsDisabled policy flag.
func (c *EmbyClient) SetUserEnabled(ctx context.Context, externalID string, enabled bool) (bool, error) {
	return c.updatePolicy(ctx, externalID, map[string]any{"IsDisabled": !enabled})
}

// SetLibraryAccess restricts the account to the given folder IDs. An empty
// list revokes all access.
func (c *EmbyClient) SetLibraryAccess(ctx context.Context, externalID string, libraryIDs []string) (bool, error) {
	if libraryIDs == nil {
		libraryIDs = []string{}
	}
	return c.updatePolicy(ctx, externalID, map[string]any{
		"EnableAllFolders": false,
		"EnabledFolders":   libraryIDs,
	})
}

// UpdatePermissions changes only the supplied permission keys.
func (c *EmbyClient) UpdatePermissions(ctx context.Context, externalID string, permissions map[string]bool) (bool, error) {
	changes := make(map[string]any, len(permissions))
	for key, value := range permissions {
		field, ok := embyPermissionPolicy[key]
		if !ok {
			logging.Warn().Str("permission", key).Msg("Emby does not support permission key, skipping")
			continue
		}
		changes[field] = value
	}
	if len(changes) == 0 {
		return true, nil
	}
	return c.updatePolicy(ctx, externalID, changes)
}

// ListUsers lists the server's accounts.
func (c *EmbyClient) ListUsers(ctx context.Context) ([]ExternalUser, error) {
	var users []embyUser
	if err := c.doRequest(ctx, http.MethodGet, "/Users", nil, &users); err != nil {
		return nil, err
	}
	out := make([]ExternalUser, 0, len(users))
	for _, u := range users {
		out = append(out, ExternalUser{ID: u.ID, Username: u.Name})
	}
	return out, nil
}

// Close releases idle connections.
func (c *EmbyClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// updatePolicy merges changes into the user's current policy and posts the
// result.
func (c *EmbyClient) updatePolicy(ctx context.Context, externalID string, changes map[string]any) (bool, error) {
	var user embyUser
	if err := c.doRequest(ctx, http.MethodGet, "/Users/"+externalID, nil, &user); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}

	policy := user.Policy
	if policy == nil {
		policy = make(map[string]any)
	}
	for field, value := range changes {
		policy[field] = value
	}

	if err := c.doRequest(ctx, http.MethodPost, "/Users/"+externalID+"/Policy", policy, nil); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// doRequest executes an HTTP request against the Emby API and decodes the
// response into result when non-nil.
func (c *EmbyClient) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	fullURL := c.baseURL + endpoint

	var reqBody io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("X-Emby-Client", "Portarius")
	req.Header.Set("X-Emby-Device-Name", "Portarius")
	req.Header.Set("X-Emby-Device-Id", "portarius")
	req.Header.Set("X-Emby-Client-Version", "1.0.0")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ServiceError{ServerType: models.ServerTypeEmby, Op: method + " " + endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return classifyHTTPError(models.ServerTypeEmby, method+" "+endpoint, resp, CodeUsernameTaken)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode emby response: %w", err)
		}
	}
	return nil
}
