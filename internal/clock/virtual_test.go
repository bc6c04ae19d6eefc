// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package clock

import (
	"context"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

func fired(t Timer) bool {
	select {
	case <-t.C():
		return true
	default:
		return false
	}
}

func TestVirtual_TimerFiresOnAdvance(t *testing.T) {
	t.Parallel()

	v := NewVirtual(epoch)
	timer := v.NewTimer(500 * time.Millisecond)

	v.Advance(499 * time.Millisecond)
	if fired(timer) {
		t.Fatal("timer fired before deadline")
	}

	v.Advance(time.Millisecond)
	select {
	case at := <-timer.C():
		if !at.Equal(epoch.Add(500 * time.Millisecond)) {
			t.Errorf("fire time = %v", at)
		}
	default:
		t.Fatal("timer did not fire at deadline")
	}
	if timer.Stop() {
		t.Error("Stop() after fire = true, want false")
	}
}

func TestVirtual_NonPositiveDurationFiresImmediately(t *testing.T) {
	t.Parallel()

	v := NewVirtual(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		if !fired(v.NewTimer(d)) {
			t.Errorf("NewTimer(%v) did not fire immediately", d)
		}
	}
	if v.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", v.Pending())
	}
}

func TestVirtual_StopPreventsFire(t *testing.T) {
	t.Parallel()

	v := NewVirtual(epoch)
	timer := v.NewTimer(time.Second)
	if v.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", v.Pending())
	}
	if !timer.Stop() {
		t.Fatal("Stop() = false, want true")
	}
	if timer.Stop() {
		t.Error("second Stop() = true, want false")
	}
	v.Advance(time.Hour)
	if fired(timer) {
		t.Error("stopped timer fired")
	}
	if v.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", v.Pending())
	}
}

func TestVirtual_SetFiresDueTimers(t *testing.T) {
	t.Parallel()

	v := NewVirtual(epoch)
	early := v.NewTimer(time.Second)
	late := v.NewTimer(time.Minute)

	v.Set(epoch.Add(2 * time.Second))
	if !fired(early) {
		t.Error("early timer did not fire")
	}
	if fired(late) {
		t.Error("late timer fired")
	}
	if !v.Now().Equal(epoch.Add(2 * time.Second)) {
		t.Errorf("Now() = %v", v.Now())
	}
}

func TestVirtual_NegativeMovesPanic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(v *Virtual)
	}{
		{"advance", func(v *Virtual) { v.Advance(-time.Second) }},
		{"set", func(v *Virtual) { v.Set(epoch.Add(-time.Second)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn(NewVirtual(epoch))
		})
	}
}

func TestVirtual_BlockUntil(t *testing.T) {
	t.Parallel()

	v := NewVirtual(epoch)
	go func() {
		time.Sleep(10 * time.Millisecond)
		v.NewTimer(time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.BlockUntil(ctx, 1); err != nil {
		t.Fatalf("BlockUntil() error = %v", err)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if err := v.BlockUntil(short, 2); err == nil {
		t.Error("BlockUntil(2) returned nil with one pending timer")
	}
}

func TestReal_TimerStop(t *testing.T) {
	t.Parallel()

	c := NewReal()
	timer := c.NewTimer(time.Hour)
	if !timer.Stop() {
		t.Error("Stop() = false for pending real timer")
	}
	if c.Now().IsZero() {
		t.Error("Now() is zero")
	}
}
