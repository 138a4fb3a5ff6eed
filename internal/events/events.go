// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

// Package events publishes domain events over an in-process Watermill
// pub/sub channel. Events are advisory: redemption outcomes are already
// durable in the database, subscribers only observe them.
package events

import "time"

// Topics.
const (
	// TopicIdentityProvisioned fires after a successful redemption commits.
	TopicIdentityProvisioned = "identity.provisioned"

	// TopicRedemptionRolledBack fires after a failed redemption's
	// compensation pass finishes.
	TopicRedemptionRolledBack = "redemption.rolled_back"
)

// IdentityProvisioned is the payload for TopicIdentityProvisioned.
type IdentityProvisioned struct {
	IdentityID     string    `json:"identity_id"`
	Username       string    `json:"username"`
	InvitationCode string    `json:"invitation_code"`
	ServerNames    []string  `json:"server_names"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// RedemptionRolledBack is the payload for TopicRedemptionRolledBack.
type RedemptionRolledBack struct {
	InvitationCode string    `json:"invitation_code"`
	Username       string    `json:"username"`
	FailedServer   string    `json:"failed_server"`
	Result         string    `json:"result"` // "clean" or "partial"
	OccurredAt     time.Time `json:"occurred_at"`
}
