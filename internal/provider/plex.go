// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
plex.go - Plex adapter

Plex has no server-local accounts: provisioning means sharing the server's
libraries with a plex.tv account. "CreateUser" issues a library share invite
(optionally accepted immediately with the invitee's own token), "DeleteUser"
revokes the share, and permissions ride on the shared-server entry.

API Endpoints:
  - GET  {server}/                                                - identity/version
  - GET  {server}/library/sections                                - library sections
  - GET  https://plex.tv/api/servers/{machineId}/shared_servers   - list shares
  - POST https://plex.tv/api/servers/{machineId}/shared_servers   - share libraries
  - PUT  https://plex.tv/api/servers/{machineId}/shared_servers/{id}    - update share
  - DELETE https://plex.tv/api/servers/{machineId}/shared_servers/{id}  - revoke share

Capability notes: Plex cannot disable an account without revoking the share,
so CapEnableDisable is omitted. If SetUserEnabled is invoked anyway it
returns false with a warning instead of raising; callers that skip the
capability check stay best-effort.

plex.tv rate limits the sharing endpoints aggressively, so all plex.tv
requests pass through a client-side limiter.
*/

package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/portarius/internal/logging"
	"github.com/tomtom215/portarius/internal/models"
)

// plexTVBaseURL is the base URL for plex.tv API endpoints.
const plexTVBaseURL = "https://plex.tv"

// PlexClient implements MediaClient for Plex servers via plex.tv sharing.
type PlexClient struct {
	serverURL  string
	token      string
	clientID   string
	tvURL      string // overridable in tests
	httpClient *http.Client
	limiter    *rate.Limiter

	mu        sync.Mutex
	machineID string // cached after first lookup
}

// Compile-time interface check.
var _ MediaClient = (*PlexClient)(nil)

// NewPlexClient creates a new Plex adapter. No I/O is performed; the server's
// machine identifier is resolved lazily on first use.
func NewPlexClient(opts ClientOptions) MediaClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "portarius"
	}
	var limiter *rate.Limiter
	if opts.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitPerSecond), 1)
	}
	return &PlexClient{
		serverURL:  strings.TrimSuffix(opts.URL, "/"),
		token:      opts.APIKey,
		clientID:   clientID,
		tvURL:      plexTVBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// Type returns the provider discriminator.
func (c *PlexClient) Type() models.ServerType { return models.ServerTypePlex }

// Capabilities returns the declared capability set. CapEnableDisable is
// deliberately absent.
func (c *PlexClient) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapCreateUser, CapDeleteUser, CapLibraryAccess, CapDownloadControl)
}

// SupportedPermissions returns the permission keys Plex can apply. Downloads
// ride on the share's allowSync flag.
func (c *PlexClient) SupportedPermissions() []string {
	return []string{PermDownload}
}

// plexSharedServer is a shared-server entry from plex.tv.
type plexSharedServer struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"userID"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	InvitedEmail string `json:"invitedEmail"`
	AllowSync    bool   `json:"allowSync"`
}

// plexSharedServersResponse is the envelope for shared_servers endpoints.
type plexSharedServersResponse struct {
	MediaContainer struct {
		Size          int                `json:"size"`
		SharedServers []plexSharedServer `json:"SharedServer"`
	} `json:"MediaContainer"`
}

// TestConnection reports whether the server answers with the configured token.
func (c *PlexClient) TestConnection(ctx context.Context) bool {
	_, err := c.GetServerInfo(ctx)
	return err == nil
}

// GetServerInfo fetches the server's root container for identity and version.
func (c *PlexClient) GetServerInfo(ctx context.Context) (*models.ServerInfo, error) {
	var root struct {
		MediaContainer struct {
			FriendlyName      string `json:"friendlyName"`
			MachineIdentifier string `json:"machineIdentifier"`
			Version           string `json:"version"`
		} `json:"MediaContainer"`
	}
	if err := c.doServer(ctx, http.MethodGet, "/", &root); err != nil {
		return nil, err
	}
	return &models.ServerInfo{
		Name:    root.MediaContainer.FriendlyName,
		Version: root.MediaContainer.Version,
		ID:      root.MediaContainer.MachineIdentifier,
	}, nil
}

// GetLibraries lists the server's library sections.
func (c *PlexClient) GetLibraries(ctx context.Context) ([]RemoteLibrary, error) {
	var sections struct {
		MediaContainer struct {
			Directory []struct {
				Key   string `json:"key"`
				Title string `json:"title"`
				Type  string `json:"type"`
			} `json:"Directory"`
		} `json:"MediaContainer"`
	}
	if err := c.doServer(ctx, http.MethodGet, "/library/sections", &sections); err != nil {
		return nil, err
	}
	libraries := make([]RemoteLibrary, 0, len(sections.MediaContainer.Directory))
	for _, dir := range sections.MediaContainer.Directory {
		libraries = append(libraries, RemoteLibrary{ID: dir.Key, Name: dir.Title, Type: dir.Type})
	}
	return libraries, nil
}

// CreateUser shares the server with the invitee's plex.tv account. The share
// initially covers all sections; the caller narrows it with SetLibraryAccess
// when the invitation restricts libraries. When an AuthToken is supplied the
// pending invite is accepted immediately on the invitee's behalf.
func (c *PlexClient) CreateUser(ctx context.Context, user NewUser) (*ExternalUser, error) {
	machineID, err := c.getMachineID(ctx)
	if err != nil {
		return nil, err
	}

	invited := user.Email
	if invited == "" {
		invited = user.Username
	}

	sections, err := c.GetLibraries(ctx)
	if err != nil {
		return nil, err
	}
	sectionIDs := make([]string, 0, len(sections))
	for _, s := range sections {
		sectionIDs = append(sectionIDs, s.ID)
	}

	body := map[string]any{
		"invitedEmail":      invited,
		"librarySectionIds": strings.Join(sectionIDs, ","),
		"allowSync":         false,
		"allowCameraUpload": false,
		"allowChannels":     false,
	}

	var resp plexSharedServersResponse
	path := fmt.Sprintf("/api/servers/%s/shared_servers", machineID)
	if err := c.doTV(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	share, err := c.resolveShare(ctx, machineID, &resp, invited)
	if err != nil {
		return nil, err
	}

	if user.AuthToken != "" {
		if err := c.acceptShare(ctx, share.ID, user.AuthToken); err != nil {
			// The share exists either way; a failed accept just leaves a
			// pending invite in the invitee's plex.tv inbox.
			logging.Warn().Err(err).Int64("share_id", share.ID).Msg("Plex share accept failed, invite left pending")
		}
	}

	username := share.Username
	if username == "" {
		username = invited
	}
	return &ExternalUser{
		ID:       strconv.FormatInt(share.ID, 10),
		Username: username,
		Email:    share.InvitedEmail,
	}, nil
}

// DeleteUser revokes the share. An unknown share ID returns false.
func (c *PlexClient) DeleteUser(ctx context.Context, externalID string) (bool, error) {
	machineID, err := c.getMachineID(ctx)
	if err != nil {
		return false, err
	}
	path := fmt.Sprintf("/api/servers/%s/shared_servers/%s", machineID, externalID)
	if err := c.doTV(ctx, http.MethodDelete, path, nil, nil); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetUserEnabled is unsupported on Plex; shares are either granted or
// revoked. Returns false with a warning instead of raising so best-effort
// callers that skipped the capability check keep working.
func (c *PlexClient) SetUserEnabled(_ context.Context, externalID string, enabled bool) (bool, error) {
	logging.Warn().Str("share_id", externalID).Bool("enabled", enabled).Msg("Plex cannot enable/disable a share, ignoring")
	return false, nil
}

// SetLibraryAccess narrows the share to the given section IDs. An empty list
// revokes access to every section while keeping the share entry.
func (c *PlexClient) SetLibraryAccess(ctx context.Context, externalID string, libraryIDs []string) (bool, error) {
	machineID, err := c.getMachineID(ctx)
	if err != nil {
		return false, err
	}
	body := map[string]any{
		"librarySectionIds": strings.Join(libraryIDs, ","),
	}
	path := fmt.Sprintf("/api/servers/%s/shared_servers/%s", machineID, externalID)
	if err := c.doTV(ctx, http.MethodPut, path, body, nil); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdatePermissions applies supported permission keys to the share. Only
// "download" is supported (allowSync); other keys are skipped with a warning.
func (c *PlexClient) UpdatePermissions(ctx context.Context, externalID string, permissions map[string]bool) (bool, error) {
	body := map[string]any{}
	for key, value := range permissions {
		if key == PermDownload {
			body["allowSync"] = value
			continue
		}
		logging.Warn().Str("permission", key).Msg("Plex does not support permission key, skipping")
	}
	if len(body) == 0 {
		return true, nil
	}

	machineID, err := c.getMachineID(ctx)
	if err != nil {
		return false, err
	}
	path := fmt.Sprintf("/api/servers/%s/shared_servers/%s", machineID, externalID)
	if err := c.doTV(ctx, http.MethodPut, path, body, nil); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListUsers lists the accounts the server is shared with.
func (c *PlexClient) ListUsers(ctx context.Context) ([]ExternalUser, error) {
	machineID, err := c.getMachineID(ctx)
	if err != nil {
		return nil, err
	}
	var resp plexSharedServersResponse
	path := fmt.Sprintf("/api/servers/%s/shared_servers", machineID)
	if err := c.doTV(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	users := make([]ExternalUser, 0, len(resp.MediaContainer.SharedServers))
	for _, share := range resp.MediaContainer.SharedServers {
		username := share.Username
		if username == "" {
			username = share.InvitedEmail
		}
		users = append(users, ExternalUser{
			ID:       strconv.FormatInt(share.ID, 10),
			Username: username,
			Email:    share.Email,
		})
	}
	return users, nil
}

// Close releases idle connections.
func (c *PlexClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// getMachineID resolves and caches the server's machine identifier, required
// by all plex.tv sharing endpoints.
func (c *PlexClient) getMachineID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machineID != "" {
		return c.machineID, nil
	}
	info, err := c.GetServerInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve machine identifier: %w", err)
	}
	if info.ID == "" {
		return "", &ServiceError{
			ServerType: models.ServerTypePlex,
			Op:         "GET /",
			Err:        fmt.Errorf("server reported no machine identifier"),
		}
	}
	c.machineID = info.ID
	return c.machineID, nil
}

// resolveShare extracts the created share from the POST response, falling
// back to a list lookup for plex.tv responses that omit the entry.
func (c *PlexClient) resolveShare(ctx context.Context, machineID string, resp *plexSharedServersResponse, invited string) (*plexSharedServer, error) {
	if len(resp.MediaContainer.SharedServers) > 0 {
		return &resp.MediaContainer.SharedServers[0], nil
	}

	var listResp plexSharedServersResponse
	path := fmt.Sprintf("/api/servers/%s/shared_servers", machineID)
	if err := c.doTV(ctx, http.MethodGet, path, nil, &listResp); err != nil {
		return nil, err
	}
	for i := range listResp.MediaContainer.SharedServers {
		share := &listResp.MediaContainer.SharedServers[i]
		if strings.EqualFold(share.InvitedEmail, invited) || strings.EqualFold(share.Username, invited) {
			return share, nil
		}
	}
	return nil, &ServiceError{
		ServerType: models.ServerTypePlex,
		Op:         "POST " + path,
		Err:        fmt.Errorf("share created but not found for %q", invited),
	}
}

// acceptShare accepts a pending invite using the invitee's own token.
func (c *PlexClient) acceptShare(ctx context.Context, shareID int64, authToken string) error {
	path := fmt.Sprintf("/api/v2/shared_servers/%d/accept", shareID)
	return c.doRaw(ctx, http.MethodPost, c.tvURL+path, authToken, nil, nil)
}

// doTV executes a plex.tv request with the admin token, passing through the
// client-side rate limiter.
func (c *PlexClient) doTV(ctx context.Context, method, path string, body, result any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &ServiceError{ServerType: models.ServerTypePlex, Op: method + " " + path, Err: err}
		}
	}
	return c.doRaw(ctx, method, c.tvURL+path, c.token, body, result)
}

// doServer executes a request against the Plex server itself.
func (c *PlexClient) doServer(ctx context.Context, method, path string, result any) error {
	return c.doRaw(ctx, method, c.serverURL+path, c.token, nil, result)
}

// doRaw executes an HTTP request with Plex headers and decodes the response
// into result when non-nil.
func (c *PlexClient) doRaw(ctx context.Context, method, fullURL, token string, body, result any) error {
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

	req.Header.Set("X-Plex-Token", token)
	req.Header.Set("X-Plex-Client-Identifier", c.clientID)
	req.Header.Set("X-Plex-Product", "Portarius")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ServiceError{ServerType: models.ServerTypePlex, Op: method + " " + fullURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return classifyHTTPError(models.ServerTypePlex, method+" "+fullURL, resp, CodeAlreadyShared)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode plex response: %w", err)
		}
	}
	return nil
}
