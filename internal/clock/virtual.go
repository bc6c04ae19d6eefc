// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package clock

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Virtual is a manually advanced clock. Timers fire only during Advance or
// Set, which makes replay timing deterministic in tests.
//
// Thread-safe for concurrent use.
type Virtual struct {
	mu      sync.Mutex
	cond    *sync.Cond
	current time.Time
	timers  []*virtualTimer
}

type virtualTimer struct {
	clock    *Virtual
	deadline time.Time
	ch       chan time.Time
	done     bool
}

// NewVirtual creates a Virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	v := &Virtual{current: start}
	v.cond = sync.NewCond(&v.mu)
	return v
}

// Now returns the current virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// NewTimer registers a timer due at Now()+d.
func (v *Virtual) NewTimer(d time.Duration) Timer {
	v.mu.Lock()
	defer v.mu.Unlock()

	t := &virtualTimer{
		clock:    v,
		deadline: v.current.Add(d),
		ch:       make(chan time.Time, 1),
	}
	if d <= 0 {
		t.done = true
		t.ch <- v.current
		return t
	}
	v.timers = append(v.timers, t)
	v.cond.Broadcast()
	return t
}

// Advance moves the clock forward by d and fires due timers in deadline order.
// Panics if d is negative.
func (v *Virtual) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.current = v.current.Add(d)
	v.fireDue()
}

// Set moves the clock to t. Panics if t is before the current time.
func (v *Virtual) Set(t time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if t.Before(v.current) {
		panic("clock: cannot set time to the past")
	}
	v.current = t
	v.fireDue()
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.timers)
}

// BlockUntil waits until at least n timers are pending or ctx is done.
func (v *Virtual) BlockUntil(ctx context.Context, n int) error {
	stop := context.AfterFunc(ctx, func() {
		v.mu.Lock()
		v.cond.Broadcast()
		v.mu.Unlock()
	})
	defer stop()

	v.mu.Lock()
	defer v.mu.Unlock()
	for len(v.timers) < n {
		if err := ctx.Err(); err != nil {
			return err
		}
		v.cond.Wait()
	}
	return nil
}

// fireDue must be called with v.mu held.
func (v *Virtual) fireDue() {
	sort.SliceStable(v.timers, func(i, j int) bool {
		return v.timers[i].deadline.Before(v.timers[j].deadline)
	})

	remaining := v.timers[:0]
	for _, t := range v.timers {
		if t.deadline.After(v.current) {
			remaining = append(remaining, t)
			continue
		}
		t.done = true
		t.ch <- v.current
	}
	for i := len(remaining); i < len(v.timers); i++ {
		v.timers[i] = nil
	}
	v.timers = remaining
	v.cond.Broadcast()
}

func (t *virtualTimer) C() <-chan time.Time { return t.ch }

func (t *virtualTimer) Stop() bool {
	v := t.clock
	v.mu.Lock()
	defer v.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	for i, other := range v.timers {
		if other == t {
			v.timers = append(v.timers[:i], v.timers[i+1:]...)
			break
		}
	}
	v.cond.Broadcast()
	return true
}
