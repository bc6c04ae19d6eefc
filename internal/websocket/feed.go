// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package websocket

import (
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/bus"
)

// AttachFeed registers router handlers that forward bus topics to hub.
// Payloads are passed through without decoding.
func AttachFeed(router *message.Router, sub message.Subscriber, hub *Hub) {
	feeds := []struct {
		name, topic, messageType string
	}{
		{"ws-behaviour", bus.TopicBehaviourCaptured, MessageTypeBehaviour},
		{"ws-replay-step", bus.TopicReplayStep, MessageTypeReplayStep},
	}
	for _, f := range feeds {
		messageType := f.messageType
		router.AddConsumerHandler(f.name, f.topic, sub, func(msg *message.Message) error {
			hub.BroadcastRaw(messageType, msg.Payload)
			return nil
		})
	}
}

// ViewportNotifier announces replay viewport changes on the hub.
type ViewportNotifier struct {
	Hub *Hub
}

// SetViewport broadcasts a viewport message.
func (v ViewportNotifier) SetViewport(width, height int) {
	v.Hub.BroadcastViewport(width, height)
}
