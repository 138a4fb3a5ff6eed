// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package events

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portarius/internal/logging"
)

// AuditLogger consumes domain events and writes them to the structured log.
// It runs as a supervised service.
type AuditLogger struct {
	bus *Bus
}

// NewAuditLogger creates the audit log subscriber.
func NewAuditLogger(bus *Bus) *AuditLogger {
	return &AuditLogger{bus: bus}
}

// String names the service in supervisor logs.
func (a *AuditLogger) String() string { return "events-audit-logger" }

// Serve subscribes to all domain event topics and logs each message until
// the context is cancelled. Implements suture.Service.
func (a *AuditLogger) Serve(ctx context.Context) error {
	provisioned, err := a.bus.Subscribe(ctx, TopicIdentityProvisioned)
	if err != nil {
		return err
	}
	rolledBack, err := a.bus.Subscribe(ctx, TopicRedemptionRolledBack)
	if err != nil {
		return err
	}

	for {
		select {
		case msg, ok := <-provisioned:
			if !ok {
				return nil
			}
			var event IdentityProvisioned
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logging.Warn().Err(err).Msg("Malformed identity.provisioned event")
				msg.Ack()
				continue
			}
			logging.Info().
				Str("identity_id", event.IdentityID).
				Str("username", event.Username).
				Str("invitation_code", event.InvitationCode).
				Strs("servers", event.ServerNames).
				Msg("Identity provisioned")
			msg.Ack()

		case msg, ok := <-rolledBack:
			if !ok {
				return nil
			}
			var event RedemptionRolledBack
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				logging.Warn().Err(err).Msg("Malformed redemption.rolled_back event")
				msg.Ack()
				continue
			}
			logging.Warn().
				Str("username", event.Username).
				Str("invitation_code", event.InvitationCode).
				Str("failed_server", event.FailedServer).
				Str("result", event.Result).
				Msg("Redemption rolled back")
			msg.Ack()

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
