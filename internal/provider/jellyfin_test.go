// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func newJellyfinTestClient(serverURL string) *JellyfinClient {
	return NewJellyfinClient(ClientOptions{URL: serverURL, APIKey: "test-api-key"}).(*JellyfinClient)
}

// verifyJellyfinAuth checks the MediaBrowser authorization header.
func verifyJellyfinAuth(t *testing.T, r *http.Request) {
	t.Helper()
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "MediaBrowser ") {
		t.Errorf("Authorization header missing MediaBrowser scheme, got %q", auth)
	}
	if !strings.Contains(auth, `Token="test-api-key"`) {
		t.Errorf("Authorization header missing token, got %q", auth)
	}
}

func TestJellyfinGetServerInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkStringEqual(t, "path", r.URL.Path, "/System/Info")
		verifyJellyfinAuth(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ServerName":"Den","Version":"10.9.2","Id":"jf-abc"}`))
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	info, err := client.GetServerInfo(context.Background())

	checkNoError(t, err)
	checkStringEqual(t, "info.Name", info.Name, "Den")
	checkStringEqual(t, "info.Version", info.Version, "10.9.2")
	checkStringEqual(t, "info.ID", info.ID, "jf-abc")
}

func TestJellyfinTestConnection(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"reachable", http.StatusOK, true},
		{"bad credentials", http.StatusUnauthorized, false},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				if tt.status == http.StatusOK {
					_, _ = w.Write([]byte(`{"ServerName":"Den","Version":"10.9.2","Id":"jf-abc"}`))
				}
			}))
			defer server.Close()

			client := newJellyfinTestClient(server.URL)
			if got := client.TestConnection(context.Background()); got != tt.want {
				t.Errorf("TestConnection: expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestJellyfinGetLibraries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkStringEqual(t, "path", r.URL.Path, "/Library/MediaFolders")
		_, _ = w.Write([]byte(`{"Items":[
			{"Id":"lib-1","Name":"Movies","CollectionType":"movies"},
			{"Id":"lib-2","Name":"Shows","CollectionType":"tvshows"}
		]}`))
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	libraries, err := client.GetLibraries(context.Background())

	checkNoError(t, err)
	checkSliceLen(t, "libraries", len(libraries), 2)
	checkStringEqual(t, "library ID", libraries[0].ID, "lib-1")
	checkStringEqual(t, "library name", libraries[0].Name, "Movies")
	checkStringEqual(t, "library type", libraries[1].Type, "tvshows")
}

func TestJellyfinCreateUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkStringEqual(t, "path", r.URL.Path, "/Users/New")
		checkStringEqual(t, "method", r.Method, http.MethodPost)
		verifyJellyfinAuth(t, r)

		var body map[string]string
		checkNoError(t, json.NewDecoder(r.Body).Decode(&body))
		checkStringEqual(t, "body.Name", body["Name"], "alice")
		checkStringEqual(t, "body.Password", body["Password"], "s3cret")

		_, _ = w.Write([]byte(`{"Id":"user-101","Name":"alice"}`))
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	created, err := client.CreateUser(context.Background(), NewUser{
		Username: "alice",
		Password: "s3cret",
		Email:    "alice@example.com",
	})

	checkNoError(t, err)
	checkStringEqual(t, "created.ID", created.ID, "user-101")
	checkStringEqual(t, "created.Username", created.Username, "alice")
	checkStringEqual(t, "created.Email", created.Email, "alice@example.com")
}

func TestJellyfinCreateUserNameTaken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`A user with the name alice already exists.`))
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	_, err := client.CreateUser(context.Background(), NewUser{Username: "alice", Password: "x"})

	checkClientErrorCode(t, err, CodeUsernameTaken)
}

func TestJellyfinCreateUserInvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	_, err := client.CreateUser(context.Background(), NewUser{Username: "alice", Password: "x"})

	checkClientErrorCode(t, err, CodeInvalidCredentials)
}

func TestJellyfinCreateUserServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`boom`))
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	_, err := client.CreateUser(context.Background(), NewUser{Username: "alice", Password: "x"})

	se, ok := AsServiceError(err)
	checkTrue(t, "error is ServiceError", ok)
	checkIntEqual(t, "status code", se.StatusCode, http.StatusInternalServerError)
}

func TestJellyfinDeleteUser(t *testing.T) {
	t.Run("existing user", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			checkStringEqual(t, "path", r.URL.Path, "/Users/user-101")
			checkStringEqual(t, "method", r.Method, http.MethodDelete)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := newJellyfinTestClient(server.URL)
		removed, err := client.DeleteUser(context.Background(), "user-101")

		checkNoError(t, err)
		checkTrue(t, "removed", removed)
	})

	t.Run("unknown user is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newJellyfinTestClient(server.URL)
		removed, err := client.DeleteUser(context.Background(), "ghost")

		checkNoError(t, err)
		checkFalse(t, "removed", removed)
	})
}

func TestJellyfinSetUserEnabledMergesPolicy(t *testing.T) {
	var postedPolicy map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/Users/user-101":
			_, _ = w.Write([]byte(`{"Id":"user-101","Name":"alice","Policy":{"IsAdministrator":false,"EnableMediaPlayback":true}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/Users/user-101/Policy":
			checkNoError(t, json.NewDecoder(r.Body).Decode(&postedPolicy))
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	updated, err := client.SetUserEnabled(context.Background(), "user-101", false)

	checkNoError(t, err)
	checkTrue(t, "updated", updated)
	checkTrue(t, "IsDisabled set", postedPolicy["IsDisabled"] == true)
	// Untouched policy fields survive the read-modify-write.
	checkTrue(t, "EnableMediaPlayback preserved", postedPolicy["EnableMediaPlayback"] == true)
	checkTrue(t, "IsAdministrator preserved", postedPolicy["IsAdministrator"] == false)
}

func TestJellyfinSetUserEnabledUnknownUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	updated, err := client.SetUserEnabled(context.Background(), "ghost", true)

	checkNoError(t, err)
	checkFalse(t, "updated", updated)
}

func TestJellyfinSetLibraryAccess(t *testing.T) {
	var postedPolicy map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/Users/user-101":
			_, _ = w.Write([]byte(`{"Id":"user-101","Name":"alice","Policy":{}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/Users/user-101/Policy":
			checkNoError(t, json.NewDecoder(r.Body).Decode(&postedPolicy))
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	updated, err := client.SetLibraryAccess(context.Background(), "user-101", []string{"lib-1", "lib-2"})

	checkNoError(t, err)
	checkTrue(t, "updated", updated)
	checkTrue(t, "EnableAllFolders false", postedPolicy["EnableAllFolders"] == false)
	folders, ok := postedPolicy["EnabledFolders"].([]any)
	checkTrue(t, "EnabledFolders is a list", ok)
	checkSliceLen(t, "EnabledFolders", len(folders), 2)
}

func TestJellyfinSetLibraryAccessEmptyRevokesAll(t *testing.T) {
	var postedPolicy map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"Id":"user-101","Name":"alice","Policy":{}}`))
		case r.Method == http.MethodPost:
			checkNoError(t, json.NewDecoder(r.Body).Decode(&postedPolicy))
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	updated, err := client.SetLibraryAccess(context.Background(), "user-101", nil)

	checkNoError(t, err)
	checkTrue(t, "updated", updated)
	folders, ok := postedPolicy["EnabledFolders"].([]any)
	checkTrue(t, "EnabledFolders is a list", ok)
	checkSliceLen(t, "EnabledFolders", len(folders), 0)
}

func TestJellyfinUpdatePermissions(t *testing.T) {
	var postedPolicy map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"Id":"user-101","Name":"alice","Policy":{"EnableMediaPlayback":true}}`))
		case r.Method == http.MethodPost:
			checkNoError(t, json.NewDecoder(r.Body).Decode(&postedPolicy))
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	updated, err := client.UpdatePermissions(context.Background(), "user-101", map[string]bool{
		PermDownload:  false,
		PermTranscode: true,
	})

	checkNoError(t, err)
	checkTrue(t, "updated", updated)
	checkTrue(t, "EnableContentDownloading false", postedPolicy["EnableContentDownloading"] == false)
	checkTrue(t, "EnableVideoPlaybackTranscoding true", postedPolicy["EnableVideoPlaybackTranscoding"] == true)
	// Keys not in the request stay as stored.
	checkTrue(t, "EnableMediaPlayback preserved", postedPolicy["EnableMediaPlayback"] == true)
}

func TestJellyfinUpdatePermissionsUnsupportedKeySkipped(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	updated, err := client.UpdatePermissions(context.Background(), "user-101", map[string]bool{
		"invite_others": true,
	})

	checkNoError(t, err)
	checkTrue(t, "updated", updated)
	checkIntEqual(t, "requests", requests, 0)
}

func TestJellyfinListUsers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkStringEqual(t, "path", r.URL.Path, "/Users")
		_, _ = w.Write([]byte(`[{"Id":"user-101","Name":"alice"},{"Id":"user-102","Name":"bob"}]`))
	}))
	defer server.Close()

	client := newJellyfinTestClient(server.URL)
	users, err := client.ListUsers(context.Background())

	checkNoError(t, err)
	checkSliceLen(t, "users", len(users), 2)
	checkStringEqual(t, "first user", users[0].Username, "alice")
	checkStringEqual(t, "second user ID", users[1].ID, "user-102")
}
