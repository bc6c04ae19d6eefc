// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package recorder keeps every captured behaviour of the current run and
// exports them as a Session file the replay engine can load.
//
// The upload queue forgets events once the collector accepts them; the
// recorder does not, so a whole play session can be replayed later.
package recorder

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/bus"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/telemetry"
)

// HandlerName is the router handler name used by Attach.
const HandlerName = "recorder"

// SessionContext supplies the identity and device written into exports.
type SessionContext interface {
	Device() telemetry.DeviceInfo
	UserID() string
}

// Recorder accumulates captured records. Safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	records   []models.EventRecord
	ctx       SessionContext
	projectID string
}

// New creates an empty recorder.
func New(ctx SessionContext, projectID string) *Recorder {
	return &Recorder{ctx: ctx, projectID: projectID}
}

// Record appends one captured behaviour.
func (r *Recorder) Record(rec models.EventRecord) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []models.EventRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of recorded behaviours.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Reset discards the recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}

// Session builds a recorded session from the current records.
func (r *Recorder) Session() *models.Session {
	device := r.ctx.Device()
	return &models.Session{
		UserID:         r.ctx.UserID(),
		OwnerID:        r.projectID,
		DeviceModel:    device.Model,
		Platform:       device.Platform,
		ViewportWidth:  device.Width,
		ViewportHeight: device.Height,
		Events:         r.Records(),
	}
}

// ExportJSON writes the recorded session to w.
func (r *Recorder) ExportJSON(w io.Writer) error {
	data, err := json.MarshalIndent(r.Session(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return nil
}

// ExportFile writes the recorded session to path.
func (r *Recorder) ExportFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create recording %s: %w", path, err)
	}
	if err := r.ExportJSON(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Handle consumes one behaviour.captured message.
func (r *Recorder) Handle(msg *message.Message) error {
	var rec models.EventRecord
	if err := bus.Decode(msg, &rec); err != nil {
		return err
	}
	r.Record(rec)
	return nil
}

// Attach registers the recorder on router for captured behaviours.
func (r *Recorder) Attach(router *message.Router, sub message.Subscriber) {
	router.AddConsumerHandler(HandlerName, bus.TopicBehaviourCaptured, sub, r.Handle)
}

// Publish lets the recorder stand in for the bus when nothing else consumes
// captured behaviours, as in offline autoplay. Other topics are ignored.
func (r *Recorder) Publish(_ context.Context, topic string, payload any) error {
	if topic != bus.TopicBehaviourCaptured {
		return nil
	}
	rec, ok := payload.(models.EventRecord)
	if !ok {
		return fmt.Errorf("recorder: unexpected %s payload %T", topic, payload)
	}
	r.Record(rec)
	return nil
}
