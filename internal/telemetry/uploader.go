// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package telemetry

import (
	"context"
	"errors"
	"sync"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/clock"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/collector"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/gate"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/metrics"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/prefs"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/queue"
)

// FlushOutcome says what a Flush call did.
type FlushOutcome int

const (
	// FlushSucceeded means the collector acknowledged the batch and it left the queue.
	FlushSucceeded FlushOutcome = iota
	// FlushFailed covers transport, parse and rejection errors. The batch stays queued.
	FlushFailed
	// FlushSkippedReplaying means a replay was running, so nothing was sent.
	FlushSkippedReplaying
	// FlushSkippedBusy means another attempt was already in flight.
	FlushSkippedBusy
	// FlushDisabled means behaviour capture is off or no collector is configured.
	FlushDisabled
)

// String returns the snake_case name used in logs and API responses.
func (o FlushOutcome) String() string {
	switch o {
	case FlushSucceeded:
		return "succeeded"
	case FlushFailed:
		return "failed"
	case FlushSkippedReplaying:
		return "skipped_replaying"
	case FlushSkippedBusy:
		return "skipped_busy"
	case FlushDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// SuccessFunc receives the collector response of an acknowledged batch.
type SuccessFunc func(*models.CollectorResponse)

// ErrorFunc receives a transport, parse or rejection error.
type ErrorFunc func(error)

// Uploader delivers queued behaviours to the collector, one exchange at a time.
type Uploader struct {
	enabled   bool
	gate      *gate.Gate
	queue     *queue.Queue
	client    collector.Client
	prefs     prefs.Store
	device    *deviceHolder
	projectID string
	clock     clock.Clock

	wg sync.WaitGroup
}

// Flush performs one delivery attempt and blocks until it completes.
//
// It does nothing while replaying or while another attempt is in flight.
// Errors are reported through onError only; unacknowledged behaviours stay
// queued for the next call. Either callback may be nil.
func (u *Uploader) Flush(ctx context.Context, onSuccess SuccessFunc, onError ErrorFunc) FlushOutcome {
	if !u.enabled {
		return FlushDisabled
	}
	if u.gate.Replaying() {
		metrics.RecordFlush(metrics.FlushSkippedReplaying, 0, 0)
		return FlushSkippedReplaying
	}

	snapshot, err := u.queue.BeginSnapshot()
	if errors.Is(err, queue.ErrBusy) {
		metrics.RecordFlush(metrics.FlushSkippedBusy, 0, 0)
		return FlushSkippedBusy
	}

	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)
	start := u.clock.Now()

	session := u.buildSession(snapshot)
	resp, err := u.client.PostBehaviours(ctx, session)
	duration := u.clock.Now().Sub(start)

	if err != nil {
		result := metrics.FlushTransport
		if errors.Is(err, collector.ErrParse) {
			result = metrics.FlushParse
		}
		metrics.RecordFlush(result, len(snapshot), duration)
		log.Warn().Err(err).Int("events", len(snapshot)).Msg("Behaviour upload failed")

		notifyError(onError, err)
		u.queue.CompleteSnapshot(false)
		return FlushFailed
	}

	if !resp.Success {
		rejected := &CollectorRejectedError{Message: resp.Message, Errors: resp.PerEventErrors}
		metrics.RecordFlush(metrics.FlushRejected, len(snapshot), duration)
		log.Warn().Int("events", len(snapshot)).Int("errors", len(resp.PerEventErrors)).Str("message", resp.Message).Msg("Collector rejected batch")

		notifyError(onError, rejected)
		u.queue.CompleteSnapshot(false)
		return FlushFailed
	}

	u.rememberUserID(resp.AssignedUserID)

	result := metrics.FlushSuccess
	if len(snapshot) == 0 {
		result = metrics.FlushEmpty
	}
	metrics.RecordFlush(result, len(snapshot), duration)
	log.Debug().Int("events", len(snapshot)).Dur("duration", duration).Msg("Behaviour batch acknowledged")

	if onSuccess != nil {
		onSuccess(resp)
	}
	u.queue.CompleteSnapshot(true)
	return FlushSucceeded
}

// FlushAsync runs Flush on its own goroutine.
func (u *Uploader) FlushAsync(ctx context.Context, onSuccess SuccessFunc, onError ErrorFunc) {
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.Flush(ctx, onSuccess, onError)
	}()
}

// Wait blocks until every FlushAsync started so far has returned.
func (u *Uploader) Wait() {
	u.wg.Wait()
}

func (u *Uploader) buildSession(events []models.EventRecord) *models.Session {
	device := u.device.get()
	return &models.Session{
		UserID:         u.prefs.GetString(prefs.KeyUserID, ""),
		OwnerID:        u.projectID,
		DeviceModel:    device.Model,
		Platform:       device.Platform,
		ViewportWidth:  device.Width,
		ViewportHeight: device.Height,
		Events:         events,
	}
}

// rememberUserID persists id on first assignment only.
func (u *Uploader) rememberUserID(id string) {
	if id == "" || u.prefs.GetString(prefs.KeyUserID, "") != "" {
		return
	}
	if err := u.prefs.SetString(prefs.KeyUserID, id); err != nil {
		logging.Err(err).Msg("Failed to persist assigned user id")
		return
	}
	logging.Info().Str("user_id", id).Msg("Collector assigned user id")
}

func notifyError(onError ErrorFunc, err error) {
	if onError != nil {
		onError(err)
	}
}
