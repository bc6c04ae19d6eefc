// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package telemetry

import (
	"context"
	"time"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/bus"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/clock"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/gate"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/metrics"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/queue"
)

// Suppression reasons.
const (
	suppressedReplaying = "replaying"
	suppressedDisabled  = "disabled"
)

// Tracker is the capture entry point.
type Tracker struct {
	enabled    bool
	gate       *gate.Gate
	queue      *queue.Queue
	pointer    PointerSource
	clock      clock.Clock
	appVersion string
	screen     string
	publisher  bus.Publisher
}

// Screen is the default screen name for captured behaviours.
func (t *Tracker) Screen() string {
	return t.screen
}

// Add captures a behaviour stamped with the current time and pointer position.
// It reports whether the behaviour was queued.
func (t *Tracker) Add(kind string, level int, screen, objectID string) bool {
	return t.AddAt(kind, level, screen, objectID, t.clock.Now())
}

// AddAt is Add with an explicit timestamp.
func (t *Tracker) AddAt(kind string, level int, screen, objectID string, at time.Time) bool {
	x, y := t.pointer.Position()
	return t.Capture(models.NewEventRecord(kind, level, screen, objectID, x, y, t.appVersion, at))
}

// Capture queues a fully built record.
func (t *Tracker) Capture(rec models.EventRecord) bool {
	if !t.enabled {
		metrics.RecordSuppressed(suppressedDisabled)
		return false
	}
	if !t.queue.Append(rec) {
		metrics.RecordSuppressed(suppressedReplaying)
		return false
	}
	metrics.RecordCapture(rec.Kind)

	if t.publisher != nil {
		if err := t.publisher.Publish(context.Background(), bus.TopicBehaviourCaptured, rec); err != nil {
			logging.Warn().Err(err).Str("kind", rec.Kind).Msg("Failed to publish captured behaviour")
		}
	}
	return true
}
