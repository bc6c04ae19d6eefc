// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package game

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/clock"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
)

// Point is a screen position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// shapeButtons are the on-screen positions of the shape buttons.
var shapeButtons = map[models.Shape]Point{
	models.ShapeCube:    {X: 270, Y: 420},
	models.ShapeSphere:  {X: 540, Y: 420},
	models.ShapeCapsule: {X: 810, Y: 420},
}

// RetryButton is the on-screen position of the retry button.
var RetryButton = Point{X: 540, Y: 1620}

// ShapeButton returns the on-screen position of a shape button.
func ShapeButton(s models.Shape) Point {
	return shapeButtons[s]
}

// Tapper is the input side of the controller.
type Tapper interface {
	Tap(x, y float64, target string)
}

// Autoplayer plays levels through the read-only accessor, tapping the
// shape buttons like a player would. It is used to produce recordings.
type Autoplayer struct {
	input       Tapper
	view        Accessor
	clock       clock.Clock
	think       time.Duration
	mistakeRate float64
	rnd         *rand.Rand
}

// AutoplayConfig configures an Autoplayer.
type AutoplayConfig struct {
	Clock clock.Clock
	Think time.Duration // pause between taps

	// MistakeRate is the probability in [0, 1) of tapping a wrong shape.
	MistakeRate float64
	Seed        uint64
}

// NewAutoplayer creates a player for the given controller.
func NewAutoplayer(input Tapper, view Accessor, cfg AutoplayConfig) *Autoplayer {
	c := cfg.Clock
	if c == nil {
		c = clock.NewReal()
	}
	rate := cfg.MistakeRate
	if rate < 0 {
		rate = 0
	}
	if rate > 0.9 {
		rate = 0.9
	}
	return &Autoplayer{
		input:       input,
		view:        view,
		clock:       c,
		think:       cfg.Think,
		mistakeRate: rate,
		rnd:         rand.New(rand.NewPCG(cfg.Seed, 1)),
	}
}

// Play taps until levels levels have been completed or ctx is done.
// It returns the number of levels completed.
func (a *Autoplayer) Play(ctx context.Context, levels int) (int, error) {
	completed := 0
	for completed < levels {
		if err := a.pause(ctx); err != nil {
			return completed, err
		}
		if !a.view.Playable() {
			continue
		}
		want, ok := a.view.NextRequiredShape()
		if !ok {
			continue
		}

		shape := want
		if a.rnd.Float64() < a.mistakeRate {
			shape = a.wrongShape(want)
		}

		before := a.view.CurrentLevel()
		p := ShapeButton(shape)
		a.input.Tap(p.X, p.Y, shape.String())
		if a.view.CurrentLevel() > before {
			completed++
		}
	}
	return completed, nil
}

func (a *Autoplayer) wrongShape(want models.Shape) models.Shape {
	others := make([]models.Shape, 0, len(models.AllShapes)-1)
	for _, s := range models.AllShapes {
		if s != want {
			others = append(others, s)
		}
	}
	return others[a.rnd.IntN(len(others))]
}

func (a *Autoplayer) pause(ctx context.Context) error {
	if a.think <= 0 {
		return ctx.Err()
	}
	t := a.clock.NewTimer(a.think)
	select {
	case <-t.C():
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}
