// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

/*
Package game is the demo shape-matching puzzle that the telemetry
instruments.

Each level shows a row of slots, each holding one of three shapes. The
player selects shapes in slot order; a wrong shape loses the level, filling
every slot wins it. Levels are generated from a seed equal to the level
number, so a level always has the same slots.

All input goes through the same command surface, whether it comes from a
live tap, the local API, the autoplayer or the replay engine. Capture calls
are made unconditionally; the telemetry gate drops them during replay.
*/
package game

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/clock"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/prefs"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/telemetry"
)

const (
	// MaxSlots caps the number of slots in a level.
	MaxSlots = 15

	// RetryButtonID is the object id captured for the retry button.
	RetryButtonID = "retry_button"

	DefaultResultDelay     = 200 * time.Millisecond
	DefaultRegenerateDelay = time.Second
)

// Result is the outcome shown after a level ends.
type Result string

const (
	ResultNone Result = ""
	ResultWin  Result = "win"
	ResultLose Result = "lose"
)

// Accessor is the read-only view of the game used by automated players.
type Accessor interface {
	CurrentIndex() int
	NextRequiredShape() (models.Shape, bool)
	Playable() bool
	CurrentLevel() int
	SlotCount() int
}

// Config configures a Controller.
type Config struct {
	Clock  clock.Clock
	Screen string

	// ResultDelay is the pause before the result is shown; RegenerateDelay
	// the pause after it before the next level is generated. Both zero
	// makes level transitions synchronous.
	ResultDelay     time.Duration
	RegenerateDelay time.Duration
}

// State is a snapshot for display.
type State struct {
	Level        int      `json:"level"`
	Slots        []string `json:"slots"`
	CurrentIndex int      `json:"current_index"`
	Playable     bool     `json:"playable"`
	Selected     string   `json:"selected,omitempty"`
	Result       Result   `json:"result,omitempty"`
	UserID       string   `json:"user_id,omitempty"`
}

// Controller owns the puzzle state. Safe for concurrent use.
type Controller struct {
	tel    *telemetry.Telemetry
	clock  clock.Clock
	screen string

	resultDelay     time.Duration
	regenerateDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	level        int
	slots        []models.Shape
	currentIndex int
	playable     bool
	selected     *models.Shape
	result       Result
	generation   uint64
}

// New creates a controller at the persisted resume level. Call
// ResetToResumeLevel to generate the first level.
func New(tel *telemetry.Telemetry, cfg Config) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		tel:             tel,
		clock:           cfg.Clock,
		screen:          cfg.Screen,
		resultDelay:     cfg.ResultDelay,
		regenerateDelay: cfg.RegenerateDelay,
		ctx:             ctx,
		cancel:          cancel,
		level:           1,
	}
	if c.clock == nil {
		c.clock = clock.NewReal()
	}
	if c.screen == "" {
		c.screen = tel.Tracker.Screen()
	}
	c.SetCurrentLevel()
	return c
}

// Close cancels pending level transitions and waits for them.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// SetLevel sets the level the next GenerateLevel builds.
func (c *Controller) SetLevel(level int) {
	if level < 1 {
		level = 1
	}
	c.mu.Lock()
	c.level = level
	c.mu.Unlock()
}

// SetCurrentLevel loads the persisted resume level.
func (c *Controller) SetCurrentLevel() {
	c.SetLevel(c.tel.Prefs.GetInt(prefs.KeyLevel, 1))
}

// GenerateLevel builds the slots for the current level and captures level_started.
func (c *Controller) GenerateLevel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generateLocked()
}

func (c *Controller) generateLocked() {
	c.selected = nil
	c.slots = Slots(c.level)
	c.currentIndex = 0
	c.playable = true
	c.result = ResultNone
	c.generation++

	c.tel.Tracker.Add(models.KindLevelStarted, c.level, c.screen, "")
}

// Slots returns the deterministic slot sequence for level.
func Slots(level int) []models.Shape {
	rnd := rand.New(rand.NewPCG(uint64(level), 0))
	n := min(level, MaxSlots)
	slots := make([]models.Shape, n)
	for i := range slots {
		slots[i] = models.AllShapes[rnd.IntN(len(models.AllShapes))]
	}
	return slots
}

// ResetShapes clears the visual selection.
func (c *Controller) ResetShapes() {
	c.mu.Lock()
	c.selected = nil
	c.mu.Unlock()
}

// Select picks shape for the current slot.
func (c *Controller) Select(shape models.Shape) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selected = &shape
	c.tel.Tracker.Add(models.KindShapeSelected, c.level, c.screen, shape.String())

	if c.currentIndex >= len(c.slots) {
		return
	}
	if shape == c.slots[c.currentIndex] {
		c.currentIndex++
		if c.currentIndex >= len(c.slots) {
			c.winLocked()
		}
		return
	}
	c.loseLocked()
}

// Retry captures the retry button and regenerates the current level.
func (c *Controller) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tel.Tracker.Add(models.KindButtonClicked, c.level, c.screen, RetryButtonID)
	c.generateLocked()
}

// ResetToResumeLevel starts a fresh live level at the persisted resume level.
func (c *Controller) ResetToResumeLevel() {
	c.SetCurrentLevel()
	c.GenerateLevel()
}

// ResolveShape maps a captured object id to a shape.
func (c *Controller) ResolveShape(objectID string) (models.Shape, bool) {
	s, err := models.ParseShape(objectID)
	if err != nil {
		return 0, false
	}
	return s, true
}

// Tap handles live pointer input at (x, y) that hit target: a shape name,
// RetryButtonID, or "" for empty space. The pointer is released afterwards.
func (c *Controller) Tap(x, y float64, target string) {
	c.tel.Pointer.Set(x, y)

	if target == RetryButtonID {
		c.Retry()
		return
	}
	if !c.Playable() {
		return
	}

	if target == "" {
		level := c.CurrentLevel()
		c.tel.Tracker.Add(models.KindMissClicked, level, c.screen, "")
		return
	}
	if shape, ok := c.ResolveShape(target); ok {
		c.Select(shape)
		c.ResetShapes()
	}
}

func (c *Controller) winLocked() {
	c.tel.Tracker.Add(models.KindLevelCompleted, c.level, c.screen, "")
	c.flush()

	c.playable = false
	c.level++
	if !c.tel.Gate.Replaying() {
		if err := c.tel.Prefs.SetInt(prefs.KeyLevel, c.level); err != nil {
			logging.Err(err).Int("level", c.level).Msg("Failed to persist level")
		}
	}
	c.scheduleLocked(ResultWin)
}

func (c *Controller) loseLocked() {
	c.tel.Tracker.Add(models.KindLevelFailed, c.level, c.screen, "")
	c.flush()

	c.playable = false
	c.scheduleLocked(ResultLose)
}

func (c *Controller) flush() {
	c.tel.Uploader.FlushAsync(c.ctx, func(resp *models.CollectorResponse) {
		logging.Debug().Str("user_id", c.tel.UserID()).Msg("Level result delivered")
	}, func(err error) {
		logging.Warn().Err(err).Msg("Level result upload failed")
	})
}

// scheduleLocked shows the result and then, if still capturing, generates
// the next level. A level generated in the meantime cancels both steps.
func (c *Controller) scheduleLocked(result Result) {
	gen := c.generation
	if c.resultDelay <= 0 && c.regenerateDelay <= 0 {
		c.result = result
		if !c.tel.Gate.Replaying() {
			c.generateLocked()
		}
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if !c.sleep(c.resultDelay) {
			return
		}
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return
		}
		c.result = result
		c.mu.Unlock()

		if !c.sleep(c.regenerateDelay) {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation == gen && !c.tel.Gate.Replaying() {
			c.generateLocked()
		}
	}()
}

func (c *Controller) sleep(d time.Duration) bool {
	if d <= 0 {
		return c.ctx.Err() == nil
	}
	t := c.clock.NewTimer(d)
	select {
	case <-t.C():
		return true
	case <-c.ctx.Done():
		t.Stop()
		return false
	}
}

// CurrentIndex is the index of the next slot to fill.
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentIndex
}

// NextRequiredShape is the shape expected in the next slot.
func (c *Controller) NextRequiredShape() (models.Shape, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentIndex >= len(c.slots) {
		return 0, false
	}
	return c.slots[c.currentIndex], true
}

// Playable reports whether the level accepts input.
func (c *Controller) Playable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playable
}

// CurrentLevel is the level being played, or the next one after a win.
func (c *Controller) CurrentLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// SlotCount is the number of slots in the current level.
func (c *Controller) SlotCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Level:        c.level,
		Slots:        make([]string, len(c.slots)),
		CurrentIndex: c.currentIndex,
		Playable:     c.playable,
		Result:       c.result,
		UserID:       c.tel.UserID(),
	}
	for i, shape := range c.slots {
		s.Slots[i] = shape.String()
	}
	if c.selected != nil {
		s.Selected = c.selected.String()
	}
	return s
}

// Shapes returns the slot sequence of the current level.
func (c *Controller) Shapes() []models.Shape {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.slots)
}
