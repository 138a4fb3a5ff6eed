// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
detect.go - Server type detection

Given a bare URL, probe every registered provider concurrently against its
unauthenticated identification endpoint and report which one answers. The
first confirmed probe wins and cancels the rest. Probes that merely connect
are not enough; each must positively identify its own product, since
Jellyfin and Emby expose the same endpoint paths.
*/

package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portarius/internal/logging"
	"github.com/tomtom215/portarius/internal/models"
)

// ProbeFunc positively identifies a provider at baseURL without credentials.
// It returns server details on a confirmed match and an error otherwise.
type ProbeFunc func(ctx context.Context, client *http.Client, baseURL string) (*models.ServerInfo, error)

// DetectResult reports the outcome of a successful detection.
type DetectResult struct {
	ServerType models.ServerType  `json:"server_type"`
	ServerInfo *models.ServerInfo `json:"server_info"`
}

// ErrNoServerDetected is returned when no registered provider answered.
var ErrNoServerDetected = fmt.Errorf("no media server detected at URL")

// DetectServerType probes url against every registered provider. perProbe
// bounds each individual probe; the overall call finishes as soon as one
// probe confirms or all fail.
func (r *Registry) DetectServerType(ctx context.Context, url string, perProbe time.Duration) (*DetectResult, error) {
	if perProbe <= 0 {
		perProbe = 5 * time.Second
	}
	baseURL := strings.TrimSuffix(url, "/")

	r.mu.RLock()
	probes := make(map[models.ServerType]ProbeFunc, len(r.descriptors))
	for t, d := range r.descriptors {
		if d.Probe != nil {
			probes[t] = d.Probe
		}
	}
	r.mu.RUnlock()

	if len(probes) == 0 {
		return nil, ErrNoServerDetected
	}

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpClient := &http.Client{Timeout: perProbe}

	results := make(chan *DetectResult, len(probes))
	var wg sync.WaitGroup
	for serverType, probe := range probes {
		wg.Add(1)
		go func(serverType models.ServerType, probe ProbeFunc) {
			defer wg.Done()
			attemptCtx, attemptCancel := context.WithTimeout(probeCtx, perProbe)
			defer attemptCancel()
			info, err := probe(attemptCtx, httpClient, baseURL)
			if err != nil {
				logging.Debug().Str("server_type", string(serverType)).Str("url", baseURL).Err(err).Msg("Detection probe failed")
				return
			}
			results <- &DetectResult{ServerType: serverType, ServerInfo: info}
		}(serverType, probe)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	select {
	case result, ok := <-results:
		if !ok {
			return nil, ErrNoServerDetected
		}
		cancel() // abandon the losing probes
		logging.Info().Str("server_type", string(result.ServerType)).Str("url", baseURL).Msg("Detected media server")
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// probeJellyfin identifies a Jellyfin server via /System/Info/Public. Emby
// serves the same path, so the product name must name Jellyfin.
func probeJellyfin(ctx context.Context, client *http.Client, baseURL string) (*models.ServerInfo, error) {
	info, err := fetchPublicSystemInfo(ctx, client, baseURL)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(strings.ToLower(info.ProductName), "jellyfin") {
		return nil, fmt.Errorf("product %q is not jellyfin", info.ProductName)
	}
	return &models.ServerInfo{Name: info.ServerName, Version: info.Version, ID: info.ID}, nil
}

// probeEmby identifies an Emby server via /System/Info/Public. Emby either
// omits the product name or reports "Emby Server"; a Jellyfin product name
// disqualifies the match.
func probeEmby(ctx context.Context, client *http.Client, baseURL string) (*models.ServerInfo, error) {
	info, err := fetchPublicSystemInfo(ctx, client, baseURL)
	if err != nil {
		return nil, err
	}
	product := strings.ToLower(info.ProductName)
	if strings.Contains(product, "jellyfin") {
		return nil, fmt.Errorf("product %q is not emby", info.ProductName)
	}
	if product != "" && !strings.Contains(product, "emby") {
		return nil, fmt.Errorf("product %q is not emby", info.ProductName)
	}
	return &models.ServerInfo{Name: info.ServerName, Version: info.Version, ID: info.ID}, nil
}

// probePlex identifies a Plex Media Server via its unauthenticated /identity
// endpoint.
func probePlex(ctx context.Context, client *http.Client, baseURL string) (*models.ServerInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/identity", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		MediaContainer struct {
			MachineIdentifier string `json:"machineIdentifier"`
			Version           string `json:"version"`
		} `json:"MediaContainer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	if payload.MediaContainer.MachineIdentifier == "" {
		return nil, fmt.Errorf("no machine identifier in identity response")
	}
	return &models.ServerInfo{
		Name:    "Plex Media Server",
		Version: payload.MediaContainer.Version,
		ID:      payload.MediaContainer.MachineIdentifier,
	}, nil
}

// publicSystemInfo is the shared Jellyfin/Emby unauthenticated info shape.
type publicSystemInfo struct {
	ID          string `json:"Id"`
	ServerName  string `json:"ServerName"`
	Version     string `json:"Version"`
	ProductName string `json:"ProductName"`
}

func fetchPublicSystemInfo(ctx context.Context, client *http.Client, baseURL string) (*publicSystemInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/System/Info/Public", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("public info endpoint returned status %d", resp.StatusCode)
	}

	var info publicSystemInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode public info response: %w", err)
	}
	if info.Version == "" && info.ServerName == "" && info.ID == "" {
		return nil, fmt.Errorf("empty public info response")
	}
	return &info, nil
}
