// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package websocket

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait - pongWait/10
	maxMessageSize = 64 * 1024 // dashboards only send pings
	sendBuffer     = 256
)

// clientIDCounter orders clients so broadcasts visit them deterministically.
var clientIDCounter atomic.Uint64

// Client is one dashboard connection. The hub owns send and closes it
// when the client is dropped.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient wraps conn. Register it with the hub, then call Start.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, conn: conn, send: make(chan Message, sendBuffer)}
}

// ID returns the client's ordering key.
func (c *Client) ID() uint64 { return c.id }

// Upgrade turns r into a dashboard connection registered with hub.
func Upgrade(hub *Hub, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := NewClient(hub, conn)
	hub.Register <- c
	c.Start()
	return nil
}

// Start runs the connection until either side gives up.
func (c *Client) Start() {
	go c.transmit()
	go c.receive()
}

// extendRead pushes the read deadline out by pongWait.
func (c *Client) extendRead(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// receive reads frames until the peer goes away. The only frame a dashboard
// sends is a ping, which is answered with a pong.
func (c *Client) receive() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(c.extendRead)
	if err := c.extendRead(""); err != nil {
		return
	}

	for {
		var in Message
		err := c.conn.ReadJSON(&in)
		switch {
		case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
			logging.Warn().Err(err).Uint64("client", c.id).Msg("Dashboard connection dropped")
			return
		case err != nil:
			return
		case in.Type == MessageTypePing:
			c.trySend(Message{Type: MessageTypePong})
		}
	}
}

// trySend queues msg unless the buffer is full.
func (c *Client) trySend(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

// transmit writes queued messages and pings the peer every pingPeriod.
// A closed send channel means the hub dropped the client.
func (c *Client) transmit() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		var err error
		select {
		case msg, open := <-c.send:
			if !open {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			if err = c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
				err = c.conn.WriteJSON(msg)
			}
		case <-ping.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			logging.Debug().Err(err).Uint64("client", c.id).Msg("Dashboard write failed")
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
