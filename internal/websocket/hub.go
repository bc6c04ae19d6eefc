// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package websocket

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/goccy/go-json"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
)

// ShutdownReason is logged when the hub stops.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types.
const (
	MessageTypeBehaviour  = "behaviour"
	MessageTypeReplayStep = "replay_step"
	MessageTypeViewport   = "viewport"
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
)

// Message is one frame sent to or received from a dashboard.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ViewportData is the payload of a viewport message.
type ViewportData struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// broadcastBuffer bounds messages waiting for the hub loop.
const broadcastBuffer = 256

// Hub fans messages out to every connected dashboard. All membership
// changes happen on the Serve goroutine; mu only guards readers such as
// GetClientCount.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	broadcast chan Message
	mu        sync.RWMutex
	clients   map[uint64]*Client
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan Message, broadcastBuffer),
		clients:    make(map[uint64]*Client),
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error { return h.RunWithContext(ctx) }

func (h *Hub) String() string { return "websocket-hub" }

// RunWithContext runs the hub loop until ctx ends, then drops every client.
// Pending registrations are applied before the next broadcast so a client
// that connected first never misses it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return h.stop(ctx)
		}
		if h.applyPendingMembership() {
			continue
		}

		select {
		case <-ctx.Done():
			return h.stop(ctx)
		case c := <-h.Register:
			h.addClient(c)
		case c := <-h.Unregister:
			h.removeClient(c)
		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

// applyPendingMembership handles one waiting Register or Unregister, if any.
func (h *Hub) applyPendingMembership() bool {
	select {
	case c := <-h.Register:
		h.addClient(c)
	case c := <-h.Unregister:
		h.removeClient(c)
	default:
		return false
	}
	return true
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	logging.Info().Uint64("client", c.id).Int("total_clients", n).Msg("Dashboard connected")
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	h.dropLocked(c)
	n := len(h.clients)
	h.mu.Unlock()
	logging.Info().Uint64("client", c.id).Int("total_clients", n).Msg("Dashboard disconnected")
}

// dropLocked closes c's queue once; a second drop is a no-op.
func (h *Hub) dropLocked(c *Client) {
	if h.clients[c.id] != c {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
}

func (h *Hub) stop(ctx context.Context) error {
	h.mu.Lock()
	closed := len(h.clients)
	for _, id := range slices.Sorted(maps.Keys(h.clients)) {
		h.dropLocked(h.clients[id])
	}
	h.mu.Unlock()

	logging.Info().
		Str("component", h.String()).
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", closed).
		Msg("Dashboard hub stopped")
	return ctx.Err()
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// broadcastToClients queues msg for each client in id order. A client
// whose queue is full is dropped rather than stalling the rest.
func (h *Hub) broadcastToClients(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(h.clients)) {
		c := h.clients[id]
		select {
		case c.send <- msg:
		default:
			h.dropLocked(c)
		}
	}
}

// BroadcastJSON queues a message for every client without blocking.
// Messages are dropped while the broadcast buffer is full.
func (h *Hub) BroadcastJSON(messageType string, data any) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("message_type", messageType).Msg("Dashboard broadcast buffer full, dropping message")
	}
}

// BroadcastRaw forwards an already encoded JSON payload.
func (h *Hub) BroadcastRaw(messageType string, payload []byte) {
	h.BroadcastJSON(messageType, json.RawMessage(payload))
}

// BroadcastViewport announces the viewport a replay is rendering at.
func (h *Hub) BroadcastViewport(width, height int) {
	h.BroadcastJSON(MessageTypeViewport, ViewportData{Width: width, Height: height})
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
