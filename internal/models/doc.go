// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

/*
Package models defines the data exchanged with the behaviour collector and
stored in recorded-session files.

EventRecord and Session marshal to the collector's wire names:

	{
	  "projectUserId": "u-42",
	  "width": 1080,
	  "height": 1920,
	  "behaviours": [
	    {"behaviourId": "level_started", "level": 3, "screen": "game",
	     "objectId": "", "x": 0, "y": 0, "version": "1.2.0",
	     "time": "2026-01-02T10:00:00.000Z"}
	  ]
	}

Timestamps are UTC with millisecond precision on output. On input any
RFC 3339 precision is accepted.
*/
package models
