// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package events

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicIdentityProvisioned)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	sent := IdentityProvisioned{
		IdentityID:     "id-1",
		Username:       "alice",
		InvitationCode: "ABCDEFGHJKMN",
		ServerNames:    []string{"den", "loft"},
		OccurredAt:     time.Now().UTC(),
	}
	bus.Publish(TopicIdentityProvisioned, sent)

	select {
	case msg := <-ch:
		var got IdentityProvisioned
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Username != "alice" || got.InvitationCode != "ABCDEFGHJKMN" {
			t.Errorf("unexpected payload: %+v", got)
		}
		if len(got.ServerNames) != 2 {
			t.Errorf("expected 2 server names, got %d", len(got.ServerNames))
		}
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestBusPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	bus := NewBus()
	defer func() { _ = bus.Close() }()

	done := make(chan struct{})
	go func() {
		bus.Publish(TopicRedemptionRolledBack, RedemptionRolledBack{Result: "clean"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked with no subscribers")
	}
}
