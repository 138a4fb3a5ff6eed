// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/portarius/internal/logging"
)

// Bus is an in-process publish/subscribe channel for domain events.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates an in-process event bus. Buffered so a slow subscriber
// cannot stall a redemption.
func NewBus() *Bus {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, newWatermillLogger())
	return &Bus{pubsub: pubsub}
}

// Publish marshals payload and publishes it on topic. Publish failures are
// logged, never propagated; domain events are advisory.
func (b *Bus) Publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event payload")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		logging.Error().Err(err).Str("topic", topic).Msg("Failed to publish event")
	}
}

// Subscribe returns a channel of messages for topic.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return ch, nil
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// watermillLogger bridges Watermill's logging to zerolog.
type watermillLogger struct {
	fields watermill.LogFields
}

func newWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	logging.Error().Err(err).Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	logging.Debug().Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	logging.Trace().Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	logging.Trace().Fields(map[string]any(l.fields.Add(fields))).Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{fields: l.fields.Add(fields)}
}
