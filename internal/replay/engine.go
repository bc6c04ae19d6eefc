// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

/*
Package replay re-drives a recorded session against a live game controller
with its recorded relative timing.

While a run is active the telemetry gate is Replaying, so the commands the
engine issues are not captured again and no uploads happen. Every path that
enters Replaying leaves it: natural completion, Stop, or cancellation of the
context passed to Start.

Pointer-driven behaviours (shape selection, button clicks) are preceded by
a synthetic tap at the recorded position. The tap starts GestureLeadTime
before the recorded instant so its animation ends when the recorded input
happened; the command itself fires at the recorded instant.

The engine holds at most one pending timer. Stop cancels it and waits for
the command in progress, if any, before resetting the controller.
*/
package replay

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/clock"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/gate"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/metrics"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
)

// DefaultGestureLeadTime is the duration of the synthetic tap animation.
const DefaultGestureLeadTime = 330 * time.Millisecond

// DefaultRetryIDs are the object ids treated as the retry button.
var DefaultRetryIDs = []string{"retry_button", "retry"}

// ErrAlreadyRunning is returned by Start while a run is active.
var ErrAlreadyRunning = errors.New("replay: already running")

// State is the engine lifecycle state.
type State int

const (
	// StateIdle is a new engine that has not run a session.
	StateIdle State = iota
	// StateLoading is held while Start validates and claims the gate.
	StateLoading
	// StateRunning means commands are being replayed and capture is off.
	StateRunning
	// StateFinished means the last behaviour was replayed.
	StateFinished
	// StateStopped means Stop or the Start context ended the run early.
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Controller is the game command surface used by the engine. It is the
// same surface live input goes through.
type Controller interface {
	SetLevel(level int)
	GenerateLevel()
	ResetShapes()
	Select(shape models.Shape)
	Retry()
	ResetToResumeLevel()
	ResolveShape(objectID string) (models.Shape, bool)
}

// PointerEmitter draws the synthetic pointer.
type PointerEmitter interface {
	Show()
	Hide()
	PointerDown(x, y float64)
	PointerUp(x, y float64)
}

// ViewportSink is told the recorded viewport when a run starts.
type ViewportSink interface {
	SetViewport(width, height int)
}

// Step describes one processed recorded behaviour.
type Step struct {
	Index      int           `json:"index"`
	Total      int           `json:"total"`
	Kind       string        `json:"behaviour_id"`
	ObjectID   string        `json:"object_id,omitempty"`
	Level      int           `json:"level"`
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Dispatched bool          `json:"dispatched"`
	Offset     time.Duration `json:"offset_ns"`
}

// Progress reports how far a run has got.
type Progress struct {
	State     string `json:"state"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// Summary aggregates a run.
type Summary struct {
	UserID       string         `json:"user_id,omitempty"`
	State        string         `json:"state"`
	Total        int            `json:"total"`
	Dispatched   int            `json:"dispatched"`
	Skipped      int            `json:"skipped"`
	PerKind      map[string]int `json:"per_kind"`
	Recorded     time.Duration  `json:"recorded_ns"`
	WallDuration time.Duration  `json:"wall_duration_ns"`
}

// Config configures an Engine. Zero values select defaults.
type Config struct {
	Clock           clock.Clock
	Pointer         PointerEmitter
	Viewport        ViewportSink
	GestureLeadTime time.Duration // 0 taps on the recorded offset; negative means DefaultGestureLeadTime
	Speed           float64 // 1.0 = recorded pace
	RetryIDs        []string

	// OnStep is called on the run goroutine after each behaviour. It must
	// not call Stop.
	OnStep func(Step)
}

// Engine replays one session at a time. Safe for concurrent use.
type Engine struct {
	gate       *gate.Gate
	controller Controller
	clock      clock.Clock
	pointer    PointerEmitter
	viewport   ViewportSink
	leadTime   time.Duration
	speed      float64
	retryIDs   []string
	onStep     func(Step)

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	done      chan struct{}
	timer     clock.Timer
	processed int
	summary   Summary
	started   time.Time
}

// New creates an idle engine.
func New(g *gate.Gate, controller Controller, cfg Config) *Engine {
	e := &Engine{
		gate:       g,
		controller: controller,
		clock:      cfg.Clock,
		pointer:    cfg.Pointer,
		viewport:   cfg.Viewport,
		leadTime:   cfg.GestureLeadTime,
		speed:      cfg.Speed,
		retryIDs:   cfg.RetryIDs,
		onStep:     cfg.OnStep,
	}
	if e.clock == nil {
		e.clock = clock.NewReal()
	}
	if e.leadTime < 0 {
		e.leadTime = DefaultGestureLeadTime
	}
	if e.speed <= 0 {
		e.speed = 1
	}
	if len(e.retryIDs) == 0 {
		e.retryIDs = DefaultRetryIDs
	}
	metrics.ReplayState.Set(float64(StateIdle))
	return e
}

// Start begins replaying session from its first behaviour with no initial delay.
func (e *Engine) Start(ctx context.Context, session *models.Session) error {
	return e.StartAt(ctx, session, time.Time{})
}

// StartAt is Start with the first delay measured from origin. A zero origin,
// or one after the first behaviour, means no initial delay.
//
// An invalid session fails with ErrInvalidSession and leaves the gate alone.
// Cancelling ctx has the same effect as Stop.
func (e *Engine) StartAt(ctx context.Context, session *models.Session, origin time.Time) error {
	if err := Validate(session); err != nil {
		metrics.RecordReplayRun("invalid")
		return err
	}

	e.mu.Lock()
	if e.state == StateLoading || e.state == StateRunning {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	prevDone := e.done
	e.mu.Unlock()

	// A run that already ended may still be handing the gate back.
	if prevDone != nil {
		select {
		case <-prevDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	e.mu.Lock()
	if e.state == StateLoading || e.state == StateRunning {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	prevState := e.state
	e.setStateLocked(StateLoading)

	if !e.gate.EnterReplay() {
		e.setStateLocked(prevState)
		e.mu.Unlock()
		return ErrAlreadyRunning
	}

	events := slices.Clone(session.Events)
	runCtx, cancel := context.WithCancel(logging.ContextWithNewCorrelationID(ctx))
	e.cancel = cancel
	e.done = make(chan struct{})
	e.timer = nil
	e.processed = 0
	e.started = e.clock.Now()
	e.summary = Summary{
		UserID:   session.UserID,
		Total:    len(events),
		PerKind:  make(map[string]int),
		Recorded: session.Duration(),
	}
	e.setStateLocked(StateRunning)
	done := e.done
	e.mu.Unlock()

	if e.viewport != nil && session.ViewportWidth > 0 && session.ViewportHeight > 0 {
		e.viewport.SetViewport(session.ViewportWidth, session.ViewportHeight)
	}
	if e.pointer != nil {
		e.pointer.Show()
	}

	logging.Ctx(runCtx).Info().
		Int("behaviours", len(events)).
		Str("user_id", session.UserID).
		Dur("recorded", session.Duration()).
		Msg("Replay started")

	if origin.IsZero() || origin.After(events[0].Timestamp) {
		origin = events[0].Timestamp
	}
	go e.run(runCtx, events, origin, done)
	return nil
}

// Stop cancels the active run, waits for the command in progress, restores
// Capturing and resets the controller to the resume level. When the run has
// already ended, Stop waits until it has handed the gate back. It does
// nothing on an engine that never ran. It must not be called from a
// controller command or an OnStep callback.
func (e *Engine) Stop() {
	e.mu.Lock()
	done := e.done
	if done == nil {
		e.mu.Unlock()
		return
	}
	stopping := e.state == StateRunning
	if stopping {
		e.setStateLocked(StateStopped)
		e.cancel()
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
	e.mu.Unlock()

	<-done
	if stopping {
		logging.Info().Int("processed", e.Progress().Processed).Msg("Replay stopped")
	}
}

// Wait blocks until the current run ends or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Progress returns how many behaviours have been processed.
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Progress{State: e.state.String(), Processed: e.processed, Total: e.summary.Total}
}

// Summary returns a copy of the current run's statistics.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.summary
	s.State = e.state.String()
	s.PerKind = make(map[string]int, len(e.summary.PerKind))
	for k, v := range e.summary.PerKind {
		s.PerKind[k] = v
	}
	return s
}

func (e *Engine) run(ctx context.Context, events []models.EventRecord, origin time.Time, done chan struct{}) {
	defer close(done)

	prev := origin
	for i, ev := range events {
		delay := ev.Timestamp.Sub(prev)
		if delay < 0 {
			delay = 0
		}
		prev = ev.Timestamp
		delay = e.scale(delay)

		if isPointerDriven(ev.Kind) {
			lead := e.scale(e.leadTime)
			if !e.wait(ctx, max(delay-lead, 0)) {
				e.abort()
				return
			}
			if ctx.Err() != nil {
				e.abort()
				return
			}
			if e.pointer != nil {
				e.pointer.PointerDown(ev.X, ev.Y)
				e.pointer.PointerUp(ev.X, ev.Y)
			}
			if !e.wait(ctx, lead) {
				e.abort()
				return
			}
		} else if !e.wait(ctx, delay) {
			e.abort()
			return
		}

		if ctx.Err() != nil {
			e.abort()
			return
		}
		dispatched := e.dispatch(ev)
		e.record(ctx, i, len(events), ev, dispatched, ev.Timestamp.Sub(origin))
	}

	e.finish(ctx)
}

// wait blocks for d or until ctx is done. The timer is published so Stop
// can cancel it.
func (e *Engine) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := e.clock.NewTimer(d)

	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		t.Stop()
		return false
	}
	e.timer = t
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		if e.timer == t {
			e.timer = nil
		}
		e.mu.Unlock()
	}()

	select {
	case <-t.C():
		return ctx.Err() == nil
	case <-ctx.Done():
		t.Stop()
		return false
	}
}

func (e *Engine) scale(d time.Duration) time.Duration {
	if e.speed == 1 {
		return d
	}
	return time.Duration(float64(d) / e.speed)
}

func isPointerDriven(kind string) bool {
	return kind == models.KindShapeSelected || kind == models.KindButtonClicked
}

// dispatch issues the controller command for ev. Unknown kinds, unknown
// shapes and unknown buttons are skipped.
func (e *Engine) dispatch(ev models.EventRecord) bool {
	switch ev.Kind {
	case models.KindLevelStarted:
		e.controller.SetLevel(ev.Level)
		e.controller.GenerateLevel()
		return true

	case models.KindShapeSelected:
		shape, ok := e.controller.ResolveShape(ev.ObjectID)
		if !ok {
			return false
		}
		e.controller.ResetShapes()
		e.controller.Select(shape)
		return true

	case models.KindButtonClicked:
		if slices.Contains(e.retryIDs, ev.ObjectID) {
			e.controller.Retry()
			return true
		}
		return false

	default:
		return false
	}
}

func (e *Engine) record(ctx context.Context, index, total int, ev models.EventRecord, dispatched bool, offset time.Duration) {
	metrics.RecordReplayEvent(dispatched)

	e.mu.Lock()
	e.processed = index + 1
	if dispatched {
		e.summary.Dispatched++
		e.summary.PerKind[ev.Kind]++
	} else {
		e.summary.Skipped++
	}
	e.mu.Unlock()

	logging.Ctx(ctx).Debug().
		Int("index", index).
		Str("behaviour_id", ev.Kind).
		Str("object_id", ev.ObjectID).
		Bool("dispatched", dispatched).
		Msg("Replayed behaviour")

	if e.onStep != nil {
		e.onStep(Step{
			Index:      index,
			Total:      total,
			Kind:       ev.Kind,
			ObjectID:   ev.ObjectID,
			Level:      ev.Level,
			X:          ev.X,
			Y:          ev.Y,
			Dispatched: dispatched,
			Offset:     offset,
		})
	}
}

// finish handles natural completion. The controller is left as the last
// replayed command put it. If Stop got in first the run is treated as stopped.
func (e *Engine) finish(ctx context.Context) {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		e.restore()
		return
	}
	e.setStateLocked(StateFinished)
	e.summary.WallDuration = e.clock.Now().Sub(e.started)
	e.cancel()
	e.mu.Unlock()

	if e.pointer != nil {
		e.pointer.Hide()
	}
	e.gate.ExitReplay()
	metrics.RecordReplayRun(StateFinished.String())
	logging.Ctx(ctx).Info().Int("dispatched", e.Summary().Dispatched).Msg("Replay finished")
}

// abort ends a run cut short by Stop or by the Start context.
func (e *Engine) abort() {
	e.mu.Lock()
	byContext := e.state == StateRunning
	if byContext {
		e.setStateLocked(StateStopped)
	}
	e.timer = nil
	e.mu.Unlock()

	e.restore()
	if byContext {
		logging.Info().Msg("Replay cancelled")
	}
}

// restore leaves replay mode after a stop. It runs on the run goroutine
// before done is closed.
func (e *Engine) restore() {
	e.mu.Lock()
	e.summary.WallDuration = e.clock.Now().Sub(e.started)
	e.mu.Unlock()

	if e.pointer != nil {
		e.pointer.Hide()
	}
	e.gate.ExitReplay()
	e.controller.ResetToResumeLevel()
	metrics.RecordReplayRun(StateStopped.String())
}

func (e *Engine) setStateLocked(s State) {
	e.state = s
	metrics.ReplayState.Set(float64(s))
}
