// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package bus is the in-process pub/sub that fans captured behaviours and
// replay progress out to the recorder and the live websocket feed.
//
// It is a Watermill GoChannel. Delivery is best effort: nothing on the bus
// is part of the upload path, which stays in the queue.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/metrics"
)

// Topics.
const (
	TopicBehaviourCaptured = "behaviour.captured"
	TopicReplayStep        = "replay.step"
)

// metadataCorrelationID carries the correlation id of the publishing context.
const metadataCorrelationID = "correlation_id"

// Publisher is the side of the bus producers depend on.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Bus wraps a GoChannel pub/sub.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// New creates a bus whose per-subscriber buffer holds bufferSize messages.
func New(bufferSize int64) *Bus {
	logger := NewLoggerAdapter(logging.WithComponent("bus"))
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: bufferSize,
		}, logger),
		logger: logger,
	}
}

// Publish JSON-encodes payload and publishes it on topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: encode %s payload: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(metadataCorrelationID, id)
	}
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("bus: publish %s: %w", topic, err)
	}
	metrics.BusMessagesPublished.WithLabelValues(topic).Inc()
	return nil
}

// Subscribe returns a channel of messages on topic. Each message must be acked.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Subscriber exposes the underlying subscriber for routers.
func (b *Bus) Subscriber() message.Subscriber {
	return b.pubsub
}

// Close stops delivery to every subscriber.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// NewRouter builds a Watermill router with panic recovery, logging through zerolog.
func (b *Bus) NewRouter() (*message.Router, error) {
	r, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, b.logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}
	r.AddMiddleware(middleware.Recoverer)
	return r, nil
}

// Decode unmarshals a message payload into v.
func Decode(msg *message.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("bus: decode message %s: %w", msg.UUID, err)
	}
	return nil
}
