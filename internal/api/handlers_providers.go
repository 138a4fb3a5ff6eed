// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package api

import (
	"net/http"
	"sort"
)

// providerInfo describes one registered provider for the admin UI.
type providerInfo struct {
	Type                 string   `json:"type"`
	DisplayName          string   `json:"display_name"`
	Capabilities         []string `json:"capabilities"`
	SupportedPermissions []string `json:"supported_permissions"`
	AuthStrategy         string   `json:"auth_strategy"`
	RequiresPassword     bool     `json:"requires_password"`
	RequiresEmail        bool     `json:"requires_email"`
	SupportsAuthToken    bool     `json:"supports_auth_token"`
	Detectable           bool     `json:"detectable"`
}

// ListProviders returns the registered provider descriptors so the admin UI
// can render capability-aware forms.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	types := h.registry.Types()
	providers := make([]providerInfo, 0, len(types))
	for _, serverType := range types {
		d, err := h.registry.Get(serverType)
		if err != nil {
			continue
		}
		caps := d.Capabilities.List()
		capNames := make([]string, len(caps))
		for i, c := range caps {
			capNames[i] = string(c)
		}
		providers = append(providers, providerInfo{
			Type:                 string(d.Type),
			DisplayName:          d.DisplayName,
			Capabilities:         capNames,
			SupportedPermissions: d.SupportedPermissions,
			AuthStrategy:         string(d.AuthStrategy),
			RequiresPassword:     d.JoinFlow.RequiresPassword,
			RequiresEmail:        d.JoinFlow.RequiresEmail,
			SupportsAuthToken:    d.JoinFlow.SupportsAuthToken,
			Detectable:           d.Probe != nil,
		})
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Type < providers[j].Type })

	rw.Success(providers)
}
