// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
capability.go - Provider capability model

Capabilities are the optional features a provider adapter declares support
for. Callers never assume a capability; they query it first. An adapter that
cannot perform an operation omits the capability instead of no-op-ing.
*/

package provider

import "sort"

// Capability names an optional provider feature.
type Capability string

// Declared capabilities.
const (
	// CapCreateUser indicates the provider can create accounts.
	CapCreateUser Capability = "create_user"

	// CapDeleteUser indicates the provider can delete accounts.
	CapDeleteUser Capability = "delete_user"

	// CapEnableDisable indicates accounts can be disabled without deletion.
	CapEnableDisable Capability = "enable_disable"

	// CapLibraryAccess indicates per-library access control.
	CapLibraryAccess Capability = "library_access"

	// CapDownloadControl indicates the download permission can be toggled.
	CapDownloadControl Capability = "download_control"
)

// CapabilitySet is an immutable set of capabilities declared by one provider.
type CapabilitySet struct {
	caps map[Capability]struct{}
}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	m := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return CapabilitySet{caps: m}
}

// Has reports whether the set contains c.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s.caps[c]
	return ok
}

// List returns the capabilities in stable order.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Permission keys understood by the redemption policy layer. Each provider
// declares the subset it supports; unsupported keys are filtered out before
// UpdatePermissions is called.
const (
	PermStream    = "stream"
	PermDownload  = "download"
	PermTranscode = "transcode"
	PermSync      = "sync"
)
