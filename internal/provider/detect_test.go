// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/portarius/internal/models"
)

func TestDetectServerTypeJellyfin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/System/Info/Public" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"Id":"jf-abc","ServerName":"Den","Version":"10.9.2","ProductName":"Jellyfin Server"}`))
	}))
	defer server.Close()

	r := newTestRegistry()
	result, err := r.DetectServerType(context.Background(), server.URL, 2*time.Second)

	checkNoError(t, err)
	checkStringEqual(t, "detected type", string(result.ServerType), "jellyfin")
	checkStringEqual(t, "server name", result.ServerInfo.Name, "Den")
}

func TestDetectServerTypeEmby(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/System/Info/Public" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		// Emby omits ProductName on older releases.
		_, _ = w.Write([]byte(`{"Id":"emby-xyz","ServerName":"Loft","Version":"4.8.1.0"}`))
	}))
	defer server.Close()

	r := newTestRegistry()
	result, err := r.DetectServerType(context.Background(), server.URL, 2*time.Second)

	checkNoError(t, err)
	checkStringEqual(t, "detected type", string(result.ServerType), "emby")
	checkStringEqual(t, "server ID", result.ServerInfo.ID, "emby-xyz")
}

func TestDetectServerTypePlex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identity" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"MediaContainer":{"machineIdentifier":"machine-abc","version":"1.40.0"}}`))
	}))
	defer server.Close()

	r := newTestRegistry()
	result, err := r.DetectServerType(context.Background(), server.URL, 2*time.Second)

	checkNoError(t, err)
	checkStringEqual(t, "detected type", string(result.ServerType), "plex")
	checkStringEqual(t, "machine ID", result.ServerInfo.ID, "machine-abc")
}

func TestDetectServerTypeNothingListening(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := newTestRegistry()
	_, err := r.DetectServerType(context.Background(), server.URL, 2*time.Second)

	checkError(t, err)
	checkTrue(t, "error is ErrNoServerDetected", errors.Is(err, ErrNoServerDetected))
}

func TestDetectServerTypeJellyfinNotMisreadAsEmby(t *testing.T) {
	// Both probes hit the same endpoint; the product name must decide.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/System/Info/Public" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"Id":"jf-abc","ServerName":"Den","Version":"10.9.2","ProductName":"Jellyfin Server"}`))
	}))
	defer server.Close()

	r := newTestRegistry()
	for i := 0; i < 5; i++ {
		result, err := r.DetectServerType(context.Background(), server.URL, 2*time.Second)
		checkNoError(t, err)
		checkStringEqual(t, "detected type", string(result.ServerType), "jellyfin")
	}
}

func TestDetectServerTypeContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRegistry()
	_, err := r.DetectServerType(ctx, "http://127.0.0.1:1", 2*time.Second)

	checkError(t, err)
}

func TestDetectServerTypeNoProbes(t *testing.T) {
	r := NewRegistry(ClientOptions{})
	r.Register(Descriptor{Type: models.ServerType("probeless"), Factory: NewEmbyClient})

	_, err := r.DetectServerType(context.Background(), "http://127.0.0.1:1", time.Second)

	checkTrue(t, "error is ErrNoServerDetected", errors.Is(err, ErrNoServerDetected))
}
