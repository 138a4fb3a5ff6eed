// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package provider

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tomtom215/portarius/internal/models"
)

// errNotFound marks a 404 from a provider. Adapters normalize it to
// (false, nil) instead of surfacing an error.
var errNotFound = errors.New("not found")

// isNotFound reports whether err carries the provider not-found marker.
func isNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}

// maxErrorBodyBytes bounds how much of an error response body is read for
// diagnostics.
const maxErrorBodyBytes = 4096

// classifyHTTPError converts a non-2xx provider response into a typed error.
// conflictCode is the sub-code used for 409 and duplicate-name 400 responses;
// it differs per provider (USERNAME_TAKEN for Jellyfin/Emby, ALREADY_SHARED
// for Plex sharing endpoints).
func classifyHTTPError(serverType models.ServerType, op string, resp *http.Response, conflictCode string) error {
	snippet := readBodySnippet(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", serverType, op, errNotFound)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &ClientError{
			ServerType: serverType,
			Op:         op,
			Code:       CodeInvalidCredentials,
			Message:    messageOrStatus(snippet, resp.StatusCode),
		}

	case resp.StatusCode == http.StatusConflict:
		return &ClientError{
			ServerType: serverType,
			Op:         op,
			Code:       conflictCode,
			Message:    messageOrStatus(snippet, resp.StatusCode),
		}

	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		code := CodeInvalidRequest
		lower := strings.ToLower(snippet)
		if strings.Contains(lower, "already exists") || strings.Contains(lower, "already shared") || strings.Contains(lower, "taken") {
			code = conflictCode
		}
		return &ClientError{
			ServerType: serverType,
			Op:         op,
			Code:       code,
			Message:    messageOrStatus(snippet, resp.StatusCode),
		}

	default:
		return &ServiceError{
			ServerType: serverType,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(messageOrStatus(snippet, resp.StatusCode)),
		}
	}
}

// readBodySnippet reads at most maxErrorBodyBytes from r for diagnostics.
func readBodySnippet(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// messageOrStatus falls back to a status line when the body was empty.
func messageOrStatus(snippet string, statusCode int) string {
	if snippet != "" {
		return snippet
	}
	return fmt.Sprintf("status %d", statusCode)
}
