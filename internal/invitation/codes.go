// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

// Package invitation holds the invitation validity rules and code generation.
// It is pure domain logic; persistence and provisioning live elsewhere.
package invitation

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// codeAlphabet excludes 0, O, I and L so codes survive being read aloud or
// hand-copied.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ123456789"

// CodeLength is the length of generated invitation codes.
const CodeLength = 12

// GenerateCode returns a new invitation code drawn from a crypto-grade
// source. Codes are uppercase and unambiguous; uniqueness is enforced by the
// storage layer's unique index, not here.
func GenerateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, CodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate invitation code: %w", err)
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
