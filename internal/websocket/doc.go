// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

/*
Package websocket streams captured behaviours and replay progress to
connected dashboards.

A Hub owns the client set and fans messages out; each Client runs a read
pump and a write pump. The Hub is fed from the event bus (see AttachFeed),
so anything published on behaviour.captured or replay.step reaches every
connected client as:

	{"type": "behaviour", "data": {...EventRecord wire form...}}
	{"type": "replay_step", "data": {...replay.Step...}}
	{"type": "viewport", "data": {"width": 1080, "height": 1920}}

Clients may send {"type": "ping"} and receive {"type": "pong"}.

Slow clients whose send buffer fills are dropped rather than blocking the
broadcast loop. The hub implements suture.Service through Serve.

Connection settings:
  - writeWait: 10 seconds
  - pongWait: 60 seconds
  - pingPeriod: 54 seconds
  - maxMessageSize: 512 KB
*/
package websocket
