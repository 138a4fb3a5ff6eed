// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package provider

import "github.com/tomtom215/portarius/internal/models"

// RegisterBuiltins registers every built-in provider descriptor. Called once
// at process startup; there is no runtime plugin discovery.
func RegisterBuiltins(r *Registry) {
	r.Register(Descriptor{
		Type:             models.ServerTypePlex,
		DisplayName:      "Plex",
		CredentialEnvVar: "PLEX_TOKEN",
		Capabilities:     NewCapabilitySet(CapCreateUser, CapDeleteUser, CapLibraryAccess, CapDownloadControl),
		SupportedPermissions: []string{
			PermDownload,
		},
		AuthStrategy: AuthAccountToken,
		JoinFlow: JoinFlow{
			RequiresPassword:  false, // accounts live on plex.tv
			RequiresEmail:     true,
			SupportsAuthToken: true,
		},
		Factory: NewPlexClient,
		Probe:   probePlex,
	})

	r.Register(Descriptor{
		Type:             models.ServerTypeJellyfin,
		DisplayName:      "Jellyfin",
		CredentialEnvVar: "JELLYFIN_API_KEY",
		Capabilities:     NewCapabilitySet(CapCreateUser, CapDeleteUser, CapEnableDisable, CapLibraryAccess, CapDownloadControl),
		SupportedPermissions: []string{
			PermStream, PermDownload, PermTranscode, PermSync,
		},
		AuthStrategy: AuthAPIKey,
		JoinFlow: JoinFlow{
			RequiresPassword:  true,
			RequiresEmail:     false,
			SupportsAuthToken: false,
		},
		Factory: NewJellyfinClient,
		Probe:   probeJellyfin,
	})

	r.Register(Descriptor{
		Type:             models.ServerTypeEmby,
		DisplayName:      "Emby",
		CredentialEnvVar: "EMBY_API_KEY",
		Capabilities:     NewCapabilitySet(CapCreateUser, CapDeleteUser, CapEnableDisable, CapLibraryAccess, CapDownloadControl),
		SupportedPermissions: []string{
			PermStream, PermDownload, PermTranscode, PermSync,
		},
		AuthStrategy: AuthAPIKey,
		JoinFlow: JoinFlow{
			RequiresPassword:  true,
			RequiresEmail:     false,
			SupportsAuthToken: false,
		},
		Factory: NewEmbyClient,
		Probe:   probeEmby,
	})
}
