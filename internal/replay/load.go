// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package replay

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
)

// ErrInvalidSession is returned for a recorded session that cannot be replayed.
var ErrInvalidSession = errors.New("replay: invalid session")

// Load decodes a recorded session and validates it.
func Load(r io.Reader) (*models.Session, error) {
	var s models.Session
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a recorded session from path.
func LoadFile(path string) (*models.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recorded session: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate checks that s has at least one event and that every event has a
// kind and a timestamp.
func Validate(s *models.Session) error {
	if s == nil || len(s.Events) == 0 {
		return fmt.Errorf("%w: no behaviours", ErrInvalidSession)
	}
	for i, ev := range s.Events {
		if ev.Kind == "" {
			return fmt.Errorf("%w: behaviour %d has no id", ErrInvalidSession, i)
		}
		if ev.Timestamp.IsZero() {
			return fmt.Errorf("%w: behaviour %d (%s) has no time", ErrInvalidSession, i, ev.Kind)
		}
	}
	return nil
}
