// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package gate holds the session-state gate that separates live capture
// from replay. Capture and upload paths read it on every call and become
// no-ops while a replay is running.
package gate

import "sync/atomic"

// State is the current session mode.
type State int32

const (
	// Capturing is the initial state: behaviours are queued and uploaded.
	Capturing State = iota
	// Replaying suppresses capture and upload.
	Replaying
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case Capturing:
		return "capturing"
	case Replaying:
		return "replaying"
	default:
		return "unknown"
	}
}

// Gate is a process-wide two-state switch. The zero value is Capturing.
// Only the replay engine transitions it.
type Gate struct {
	state atomic.Int32
}

// New returns a gate in the Capturing state.
func New() *Gate {
	return &Gate{}
}

// State returns the current state.
func (g *Gate) State() State {
	return State(g.state.Load())
}

// Replaying reports whether capture is currently suppressed.
func (g *Gate) Replaying() bool {
	return g.State() == Replaying
}

// EnterReplay switches Capturing to Replaying. It returns false if the gate
// was already Replaying.
func (g *Gate) EnterReplay() bool {
	return g.state.CompareAndSwap(int32(Capturing), int32(Replaying))
}

// ExitReplay restores Capturing. Calling it while Capturing is a no-op.
func (g *Gate) ExitReplay() {
	g.state.Store(int32(Capturing))
}
