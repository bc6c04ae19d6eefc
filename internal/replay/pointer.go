// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package replay

import "github.com/rs/zerolog"

// LogPointer is a PointerEmitter for headless runs. Each gesture is
// written to the logger at debug level.
type LogPointer struct {
	logger zerolog.Logger
}

// NewLogPointer creates a pointer that logs through logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewLogPointer(logger zerolog.Logger) *LogPointer {
	return &LogPointer{logger: logger}
}

func (p *LogPointer) Show() { p.logger.Debug().Msg("Pointer shown") }

func (p *LogPointer) Hide() { p.logger.Debug().Msg("Pointer hidden") }

func (p *LogPointer) PointerDown(x, y float64) {
	p.logger.Debug().Float64("x", x).Float64("y", y).Msg("Pointer down")
}

func (p *LogPointer) PointerUp(x, y float64) {
	p.logger.Debug().Float64("x", x).Float64("y", y).Msg("Pointer up")
}

// ViewportSinks notifies every sink in order.
type ViewportSinks []ViewportSink

// SetViewport implements ViewportSink.
func (s ViewportSinks) SetViewport(width, height int) {
	for _, sink := range s {
		if sink != nil {
			sink.SetViewport(width, height)
		}
	}
}
