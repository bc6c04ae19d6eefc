// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/bus"
)

func TestAttachFeed_ForwardsBusTopics(t *testing.T) {
	b := bus.New(16)
	defer b.Close()

	router, err := b.NewRouter()
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	hub := runHub(t)
	AttachFeed(router, b.Subscriber(), hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = router.Run(ctx) }()
	defer router.Close()
	<-router.Running()

	conn := dialWebSocket(t, newUpgradeServer(t, hub))
	waitForClients(t, hub, 1)

	if err := b.Publish(ctx, bus.TopicReplayStep, map[string]int{"index": 3}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeReplayStep {
		t.Fatalf("Type = %q", msg.Type)
	}
	data, ok := msg.Data.(map[string]interface{})
	if !ok || data["index"] != float64(3) {
		t.Errorf("Data = %#v", msg.Data)
	}
}

func TestViewportNotifier(t *testing.T) {
	hub := NewHub()
	ViewportNotifier{Hub: hub}.SetViewport(720, 1280)

	msg := <-hub.broadcast
	if msg.Type != MessageTypeViewport {
		t.Fatalf("Type = %q", msg.Type)
	}
	if v, ok := msg.Data.(ViewportData); !ok || v.Width != 720 || v.Height != 1280 {
		t.Errorf("Data = %#v", msg.Data)
	}
}
