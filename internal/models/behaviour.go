// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// TimeLayout is the wire format for event timestamps: UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Behaviour kinds captured by the game.
const (
	KindLevelStarted   = "level_started"
	KindLevelCompleted = "level_completed"
	KindLevelFailed    = "level_failed"
	KindShapeSelected  = "shape_selected"
	KindButtonClicked  = "button_clicked"
	KindMissClicked    = "miss_clicked"
)

// EventRecord is one captured behaviour. It is immutable once created.
type EventRecord struct {
	Kind       string
	Level      int
	Screen     string
	ObjectID   string
	X          float64
	Y          float64
	AppVersion string
	Timestamp  time.Time
}

// eventWire is the collector representation of an EventRecord.
type eventWire struct {
	BehaviourID string  `json:"behaviourId"`
	Level       int     `json:"level"`
	Screen      string  `json:"screen"`
	ObjectID    string  `json:"objectId"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Version     string  `json:"version"`
	Time        string  `json:"time"`
}

// NewEventRecord builds a record with the timestamp truncated to millisecond precision.
func NewEventRecord(kind string, level int, screen, objectID string, x, y float64, appVersion string, at time.Time) EventRecord {
	return EventRecord{
		Kind:       kind,
		Level:      level,
		Screen:     screen,
		ObjectID:   objectID,
		X:          x,
		Y:          y,
		AppVersion: appVersion,
		Timestamp:  at.UTC().Truncate(time.Millisecond),
	}
}

// MarshalJSON writes the record using the collector field names.
func (e EventRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventWire{
		BehaviourID: e.Kind,
		Level:       e.Level,
		Screen:      e.Screen,
		ObjectID:    e.ObjectID,
		X:           e.X,
		Y:           e.Y,
		Version:     e.AppVersion,
		Time:        FormatTime(e.Timestamp),
	})
}

// UnmarshalJSON reads a record in the collector format. The timestamp
// accepts any RFC 3339 precision; a missing timestamp decodes as the zero time.
func (e *EventRecord) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var ts time.Time
	if w.Time != "" {
		var err error
		if ts, err = ParseTime(w.Time); err != nil {
			return fmt.Errorf("behaviour %q: %w", w.BehaviourID, err)
		}
	}
	*e = EventRecord{
		Kind:       w.BehaviourID,
		Level:      w.Level,
		Screen:     w.Screen,
		ObjectID:   w.ObjectID,
		X:          w.X,
		Y:          w.Y,
		AppVersion: w.Version,
		Timestamp:  ts,
	}
	return nil
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses an ISO-8601 UTC timestamp.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
