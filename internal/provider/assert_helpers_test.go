// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package provider

import (
	"strings"
	"testing"
)

// Test assertion helpers with "check" prefix to avoid conflicts with existing helpers.
// Using t.Helper() ensures error messages point to the calling line.

// checkStringEqual checks that got equals want, failing if not
func checkStringEqual(t *testing.T, fieldName, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %q, got %q", fieldName, want, got)
	}
}

// checkIntEqual checks that got equals want
func checkIntEqual(t *testing.T, fieldName string, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", fieldName, want, got)
	}
}

// checkNoError fails the test if err is not nil
func checkNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// checkError fails the test if err is nil
func checkError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// checkErrorContains fails the test if err is nil or doesn't contain substr
func checkErrorContains(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", substr)
	}
	if got := err.Error(); !strings.Contains(got, substr) {
		t.Errorf("expected error containing %q, got %q", substr, got)
	}
}

// checkSliceLen checks that slice has expected length
func checkSliceLen(t *testing.T, name string, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected length %d, got %d", name, want, got)
	}
}

// checkTrue checks that condition is true
func checkTrue(t *testing.T, description string, condition bool) {
	t.Helper()
	if !condition {
		t.Errorf("expected %s to be true", description)
	}
}

// checkFalse checks that condition is false
func checkFalse(t *testing.T, description string, condition bool) {
	t.Helper()
	if condition {
		t.Errorf("expected %s to be false", description)
	}
}

// checkClientErrorCode fails unless err unwraps to a ClientError with the
// given sub-code
func checkClientErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	ce, ok := AsClientError(err)
	if !ok {
		t.Fatalf("expected ClientError with code %s, got %v", code, err)
	}
	if ce.Code != code {
		t.Errorf("ClientError code: expected %s, got %s", code, ce.Code)
	}
}
