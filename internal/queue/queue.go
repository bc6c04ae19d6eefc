// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package queue buffers captured behaviours between uploads.
//
// Two ordered sequences are kept. Active holds events eligible for the next
// upload; staged holds events captured while an upload is in flight. A
// snapshot is always a copy, so the serialized batch never aliases storage
// that capture is still writing to.
package queue

import (
	"errors"
	"sync"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/gate"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/metrics"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
)

// ErrBusy is returned by BeginSnapshot while another upload is in flight.
var ErrBusy = errors.New("queue: upload already in flight")

// Queue is safe for concurrent use.
type Queue struct {
	gate *gate.Gate

	mu       sync.Mutex
	active   []models.EventRecord
	staged   []models.EventRecord
	inFlight bool
}

// New creates an empty queue consulting g on every Append.
func New(g *gate.Gate) *Queue {
	return &Queue{gate: g}
}

// Append adds rec to active, or to staged while an upload is in flight.
// It reports false without side effects when the gate is Replaying.
func (q *Queue) Append(rec models.EventRecord) bool {
	if q.gate.Replaying() {
		return false
	}

	q.mu.Lock()
	if q.inFlight {
		q.staged = append(q.staged, rec)
	} else {
		q.active = append(q.active, rec)
	}
	q.publishSizesLocked()
	q.mu.Unlock()
	return true
}

// BeginSnapshot marks an upload in flight and returns a copy of active.
func (q *Queue) BeginSnapshot() ([]models.EventRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight {
		return nil, ErrBusy
	}
	q.inFlight = true

	snapshot := make([]models.EventRecord, len(q.active))
	copy(snapshot, q.active)
	return snapshot, nil
}

// CompleteSnapshot ends the in-flight upload. On success the acknowledged
// active events are dropped; otherwise they are kept for the next attempt.
// Staged events are then moved after whatever remains in active.
// Calling it with no upload in flight does nothing.
func (q *Queue) CompleteSnapshot(success bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.inFlight {
		return
	}

	if success {
		q.active = nil
	}
	if len(q.staged) > 0 {
		q.active = append(q.active, q.staged...)
		q.staged = nil
	}
	q.inFlight = false
	q.publishSizesLocked()
}

// InFlight reports whether a snapshot is outstanding.
func (q *Queue) InFlight() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Stats is a point-in-time view of queue sizes.
type Stats struct {
	Active   int  `json:"active"`
	Staged   int  `json:"staged"`
	InFlight bool `json:"in_flight"`
}

// Stats returns current sizes.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Active: len(q.active), Staged: len(q.staged), InFlight: q.inFlight}
}

// Pending returns a copy of every queued event in delivery order: active then staged.
func (q *Queue) Pending() []models.EventRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.EventRecord, 0, len(q.active)+len(q.staged))
	out = append(out, q.active...)
	return append(out, q.staged...)
}

func (q *Queue) publishSizesLocked() {
	metrics.QueueActiveEvents.Set(float64(len(q.active)))
	metrics.QueueStagedEvents.Set(float64(len(q.staged)))
}
