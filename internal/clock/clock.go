// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package clock abstracts time for the replay engine and the telemetry
// tracker. Waits are cancellable timers: the holder keeps the Timer handle
// and calls Stop to abandon it.
package clock

import "time"

// Clock supplies the current time and cancellable timers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// NewTimer returns a timer that fires once after d. A non-positive d
	// fires immediately.
	NewTimer(d time.Duration) Timer
}

// Timer is a single pending wait.
type Timer interface {
	// C delivers the fire time exactly once.
	C() <-chan time.Time
	// Stop prevents the timer from firing. It reports false if the timer
	// already fired or was stopped.
	Stop() bool
}

// Real delegates to the standard time package.
type Real struct{}

// NewReal returns the wall clock.
func NewReal() Real {
	return Real{}
}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// NewTimer wraps time.NewTimer.
func (Real) NewTimer(d time.Duration) Timer {
	return realTimer{time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) C() <-chan time.Time { return r.t.C }

func (r realTimer) Stop() bool { return r.t.Stop() }
