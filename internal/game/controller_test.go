// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package game

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/clock"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/collector"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/prefs"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/telemetry"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type okCollector struct {
	mu    sync.Mutex
	calls int
}

func (c *okCollector) PostBehaviours(context.Context, *models.Session) (*models.CollectorResponse, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return &models.CollectorResponse{Success: true, AssignedUserID: "user-1"}, nil
}

func (c *okCollector) PostLog(context.Context, collector.LogEntry) error { return nil }

func (c *okCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// capturePublisher keeps every captured record so tests can inspect what
// the game emitted even after an upload drained the queue.
type capturePublisher struct {
	mu      sync.Mutex
	records []models.EventRecord
}

func (p *capturePublisher) Publish(_ context.Context, _ string, payload any) error {
	if rec, ok := payload.(models.EventRecord); ok {
		p.mu.Lock()
		p.records = append(p.records, rec)
		p.mu.Unlock()
	}
	return nil
}

func (p *capturePublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.records))
	for i, r := range p.records {
		out[i] = r.Kind
	}
	return out
}

func (p *capturePublisher) last() models.EventRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.records[len(p.records)-1]
}

type fixture struct {
	tel       *telemetry.Telemetry
	collector *okCollector
	published *capturePublisher
	ctrl      *Controller
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{collector: &okCollector{}, published: &capturePublisher{}}
	appCfg := &config.Config{Telemetry: config.TelemetryConfig{BehaviourEnabled: true, Screen: "game", AppVersion: "1.0"}}
	f.tel = telemetry.New(appCfg, f.collector, prefs.NewMemoryStore(),
		telemetry.WithClock(clock.NewVirtual(t0)),
		telemetry.WithPublisher(f.published))
	f.ctrl = New(f.tel, cfg)
	t.Cleanup(func() {
		f.ctrl.Close()
		f.tel.Wait()
	})
	return f
}

func (f *fixture) solve(t *testing.T) {
	t.Helper()
	for _, s := range f.ctrl.Shapes() {
		f.ctrl.Select(s)
	}
}

func TestSlots_Deterministic(t *testing.T) {
	t.Parallel()
	if !slices.Equal(Slots(7), Slots(7)) {
		t.Error("same level produced different slots")
	}
	tests := []struct {
		level int
		want  int
	}{
		{level: 1, want: 1},
		{level: 5, want: 5},
		{level: 15, want: 15},
		{level: 40, want: MaxSlots},
	}
	for _, tt := range tests {
		if got := len(Slots(tt.level)); got != tt.want {
			t.Errorf("len(Slots(%d)) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestController_WinAdvancesAndPersists(t *testing.T) {
	f := newFixture(t, Config{})
	f.ctrl.SetLevel(2)
	f.ctrl.GenerateLevel()
	f.solve(t)
	f.tel.Wait()

	if got := f.ctrl.CurrentLevel(); got != 3 {
		t.Errorf("level = %d, want 3", got)
	}
	if got := f.tel.Prefs.GetInt(prefs.KeyLevel, 1); got != 3 {
		t.Errorf("persisted level = %d, want 3", got)
	}
	want := []string{
		models.KindLevelStarted,
		models.KindShapeSelected, models.KindShapeSelected,
		models.KindLevelCompleted,
		models.KindLevelStarted,
	}
	if got := f.published.kinds(); !slices.Equal(got, want) {
		t.Errorf("captured = %v, want %v", got, want)
	}
	if f.collector.count() != 1 {
		t.Errorf("uploads = %d, want 1", f.collector.count())
	}
	if !f.ctrl.Playable() || f.ctrl.SlotCount() != 3 {
		t.Errorf("next level not generated: %+v", f.ctrl.Snapshot())
	}
}

func TestController_WrongShapeLoses(t *testing.T) {
	f := newFixture(t, Config{})
	f.ctrl.SetLevel(4)
	f.ctrl.GenerateLevel()

	want, _ := f.ctrl.NextRequiredShape()
	wrong := models.ShapeCube
	if want == wrong {
		wrong = models.ShapeSphere
	}
	f.ctrl.Select(wrong)
	f.tel.Wait()

	if got := f.ctrl.CurrentLevel(); got != 4 {
		t.Errorf("level = %d, want 4", got)
	}
	kinds := f.published.kinds()
	if !slices.Contains(kinds, models.KindLevelFailed) {
		t.Errorf("captured = %v, want level_failed", kinds)
	}
	if f.tel.Prefs.GetInt(prefs.KeyLevel, 1) != 1 {
		t.Error("level persisted on a loss")
	}
	if f.ctrl.CurrentIndex() != 0 || !f.ctrl.Playable() {
		t.Error("level not regenerated after loss")
	}
}

func TestController_ReplayDoesNotPersistOrRegenerate(t *testing.T) {
	f := newFixture(t, Config{})
	f.ctrl.SetLevel(1)
	f.ctrl.GenerateLevel()
	before := len(f.published.kinds())

	f.tel.Gate.EnterReplay()
	f.solve(t)
	f.tel.Wait()
	f.tel.Gate.ExitReplay()

	if f.ctrl.CurrentLevel() != 2 {
		t.Errorf("level = %d, want 2", f.ctrl.CurrentLevel())
	}
	if f.tel.Prefs.GetInt(prefs.KeyLevel, 1) != 1 {
		t.Error("level persisted during replay")
	}
	if f.ctrl.Playable() {
		t.Error("level regenerated during replay")
	}
	if got := len(f.published.kinds()); got != before {
		t.Errorf("captured %d behaviours during replay", got-before)
	}
	if f.collector.count() != 0 {
		t.Error("uploaded during replay")
	}
}

func TestController_TapMissAndRetry(t *testing.T) {
	f := newFixture(t, Config{})
	f.ctrl.ResetToResumeLevel()

	f.ctrl.Tap(12, 34, "")
	miss := f.published.last()
	if miss.Kind != models.KindMissClicked || miss.X != 12 || miss.Y != 34 {
		t.Errorf("miss = %+v", miss)
	}

	f.ctrl.Tap(RetryButton.X, RetryButton.Y, RetryButtonID)
	kinds := f.published.kinds()
	tail := kinds[len(kinds)-2:]
	if !slices.Equal(tail, []string{models.KindButtonClicked, models.KindLevelStarted}) {
		t.Errorf("retry captured %v", tail)
	}
}

func TestController_TapShapeReleasesSelection(t *testing.T) {
	f := newFixture(t, Config{})
	f.ctrl.SetLevel(5)
	f.ctrl.GenerateLevel()

	want, _ := f.ctrl.NextRequiredShape()
	p := ShapeButton(want)
	f.ctrl.Tap(p.X, p.Y, want.String())

	if f.ctrl.CurrentIndex() != 1 {
		t.Errorf("index = %d, want 1", f.ctrl.CurrentIndex())
	}
	if s := f.ctrl.Snapshot(); s.Selected != "" {
		t.Errorf("selection not released: %q", s.Selected)
	}
	rec := f.published.last()
	if rec.ObjectID != want.String() || rec.X != p.X {
		t.Errorf("captured %+v", rec)
	}
}

func TestController_ResetToResumeLevel(t *testing.T) {
	f := newFixture(t, Config{})
	if err := f.tel.Prefs.SetInt(prefs.KeyLevel, 9); err != nil {
		t.Fatal(err)
	}
	f.ctrl.SetLevel(2)
	f.ctrl.ResetToResumeLevel()

	if f.ctrl.CurrentLevel() != 9 || f.ctrl.SlotCount() != 9 {
		t.Errorf("state = %+v", f.ctrl.Snapshot())
	}
}

func TestController_DelayedTransition(t *testing.T) {
	vc := clock.NewVirtual(t0)
	f := newFixture(t, Config{Clock: vc, ResultDelay: DefaultResultDelay, RegenerateDelay: DefaultRegenerateDelay})
	f.ctrl.SetLevel(1)
	f.ctrl.GenerateLevel()
	f.solve(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := vc.BlockUntil(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if f.ctrl.Playable() {
		t.Fatal("playable before the transition")
	}
	vc.Advance(DefaultResultDelay)

	if err := vc.BlockUntil(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if got := f.ctrl.Snapshot().Result; got != ResultWin {
		t.Errorf("result = %q, want win", got)
	}
	vc.Advance(DefaultRegenerateDelay)

	for !f.ctrl.Playable() {
		if ctx.Err() != nil {
			t.Fatal("next level never generated")
		}
		time.Sleep(time.Millisecond)
	}
	if f.ctrl.CurrentLevel() != 2 {
		t.Errorf("level = %d", f.ctrl.CurrentLevel())
	}
}

func TestController_GenerateCancelsPendingTransition(t *testing.T) {
	vc := clock.NewVirtual(t0)
	f := newFixture(t, Config{Clock: vc, ResultDelay: DefaultResultDelay, RegenerateDelay: DefaultRegenerateDelay})
	f.ctrl.SetLevel(3)
	f.ctrl.GenerateLevel()
	f.ctrl.Select(models.Shape(99))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := vc.BlockUntil(ctx, 1); err != nil {
		t.Fatal(err)
	}

	f.ctrl.Retry()
	vc.Advance(DefaultResultDelay)

	// The stale transition must not overwrite the fresh level's result.
	time.Sleep(10 * time.Millisecond)
	if got := f.ctrl.Snapshot().Result; got != ResultNone {
		t.Errorf("result = %q, want none", got)
	}
}

func TestAutoplayer_CompletesLevels(t *testing.T) {
	f := newFixture(t, Config{})
	f.ctrl.ResetToResumeLevel()

	a := NewAutoplayer(f.ctrl, f.ctrl, AutoplayConfig{MistakeRate: 0.2, Seed: 7})
	n, err := a.Play(context.Background(), 4)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if n != 4 {
		t.Errorf("completed = %d, want 4", n)
	}
	if f.ctrl.CurrentLevel() != 5 {
		t.Errorf("level = %d, want 5", f.ctrl.CurrentLevel())
	}
}

func TestAutoplayer_StopsOnCancel(t *testing.T) {
	f := newFixture(t, Config{})
	f.ctrl.ResetToResumeLevel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := NewAutoplayer(f.ctrl, f.ctrl, AutoplayConfig{})
	if _, err := a.Play(ctx, 3); err == nil {
		t.Error("expected context error")
	}
}
