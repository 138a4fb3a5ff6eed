// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package provider

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/tomtom215/portarius/internal/models"
)

func newTestResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantCode   string // empty means not a ClientError
		wantIs404  bool
		wantStatus int // non-zero means ServiceError with this status
	}{
		{
			name:      "404 maps to not-found marker",
			status:    http.StatusNotFound,
			wantIs404: true,
		},
		{
			name:     "401 maps to invalid credentials",
			status:   http.StatusUnauthorized,
			wantCode: CodeInvalidCredentials,
		},
		{
			name:     "403 maps to invalid credentials",
			status:   http.StatusForbidden,
			body:     "forbidden",
			wantCode: CodeInvalidCredentials,
		},
		{
			name:     "409 maps to conflict code",
			status:   http.StatusConflict,
			wantCode: CodeUsernameTaken,
		},
		{
			name:     "400 with duplicate hint maps to conflict code",
			status:   http.StatusBadRequest,
			body:     "A user with that name already exists",
			wantCode: CodeUsernameTaken,
		},
		{
			name:     "422 with taken hint maps to conflict code",
			status:   http.StatusUnprocessableEntity,
			body:     "username is taken",
			wantCode: CodeUsernameTaken,
		},
		{
			name:     "400 without hint maps to invalid request",
			status:   http.StatusBadRequest,
			body:     "missing field Name",
			wantCode: CodeInvalidRequest,
		},
		{
			name:       "500 maps to ServiceError",
			status:     http.StatusInternalServerError,
			body:       "boom",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "503 maps to ServiceError",
			status:     http.StatusServiceUnavailable,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := newTestResponse(tt.status, tt.body)
			err := classifyHTTPError(models.ServerTypeJellyfin, "POST /Users/New", resp, CodeUsernameTaken)

			checkError(t, err)
			switch {
			case tt.wantIs404:
				checkTrue(t, "isNotFound", isNotFound(err))
			case tt.wantCode != "":
				checkClientErrorCode(t, err, tt.wantCode)
			case tt.wantStatus != 0:
				se, ok := AsServiceError(err)
				checkTrue(t, "error is ServiceError", ok)
				checkIntEqual(t, "status", se.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestClientErrorMessage(t *testing.T) {
	err := &ClientError{
		ServerType: models.ServerTypePlex,
		Op:         "POST /api/servers/abc/shared_servers",
		Code:       CodeAlreadyShared,
		Message:    "already shared",
	}
	checkErrorContains(t, err, "plex")
	checkErrorContains(t, err, CodeAlreadyShared)
}

func TestServiceErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("dial tcp: connection refused")
	err := &ServiceError{ServerType: models.ServerTypeEmby, Op: "GET /System/Info", Err: inner}

	checkErrorContains(t, err, "connection refused")
	if err.Unwrap() != inner {
		t.Error("Unwrap should return the inner error")
	}
}

func TestAsClientErrorOnWrappedError(t *testing.T) {
	base := &ClientError{ServerType: models.ServerTypeJellyfin, Op: "op", Code: CodeInvalidRequest}
	wrapped := fmt.Errorf("redeem: %w", base)

	ce, ok := AsClientError(wrapped)
	checkTrue(t, "found ClientError", ok)
	checkStringEqual(t, "code", ce.Code, CodeInvalidRequest)

	_, ok = AsServiceError(wrapped)
	checkFalse(t, "found ServiceError", ok)
}

func TestCapabilitySet(t *testing.T) {
	caps := NewCapabilitySet(CapCreateUser, CapLibraryAccess)

	checkTrue(t, "CapCreateUser", caps.Has(CapCreateUser))
	checkTrue(t, "CapLibraryAccess", caps.Has(CapLibraryAccess))
	checkFalse(t, "CapEnableDisable", caps.Has(CapEnableDisable))
	checkSliceLen(t, "List", len(caps.List()), 2)
}
