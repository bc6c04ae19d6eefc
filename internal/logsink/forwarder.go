// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package logsink forwards error logs to the collector's /log endpoint.
//
// The Forwarder is a zerolog hook. Events at error level and above are
// turned into collector.LogEntry values and queued on a bounded channel;
// a supervised worker drains the channel at a limited rate. Info and warn
// events are never forwarded, so the worker's own warnings cannot loop.
package logsink

import (
	"context"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/clock"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/collector"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/metrics"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/prefs"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/telemetry"
)

// Forward results used as the "result" metric label.
const (
	resultSent    = "sent"
	resultFailed  = "failed"
	resultDropped = "dropped"
)

// maxTraceSize bounds the stack trace attached to each entry.
const maxTraceSize = 8 * 1024

// Forwarder is a zerolog.Hook plus the worker that delivers what it collects.
type Forwarder struct {
	client  collector.Client
	prefs   prefs.Store
	device  telemetry.DeviceInfo
	project string
	version string
	clock   clock.Clock

	entries chan collector.LogEntry
	limiter *rate.Limiter
	dropped atomic.Uint64
}

// New creates a forwarder. Register it with logging.AddHook and run Serve.
func New(client collector.Client, store prefs.Store, device telemetry.DeviceInfo, cfg *config.Config) *Forwarder {
	size := cfg.LogSink.BufferSize
	if size <= 0 {
		size = 256
	}
	burst := cfg.LogSink.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Forwarder{
		client:  client,
		prefs:   store,
		device:  device,
		project: cfg.Collector.ProjectID,
		version: cfg.Telemetry.AppVersion,
		clock:   clock.NewReal(),
		entries: make(chan collector.LogEntry, size),
		limiter: rate.NewLimiter(rate.Limit(cfg.LogSink.RatePerSecond), burst),
	}
}

// Run implements zerolog.Hook. It never blocks.
//
//nolint:gocritic // signature fixed by zerolog.Hook
func (f *Forwarder) Run(_ *zerolog.Event, level zerolog.Level, message string) {
	if level < zerolog.ErrorLevel || level == zerolog.NoLevel || level == zerolog.Disabled {
		return
	}

	entry := collector.LogEntry{
		UserData:    f.userData(),
		LevelName:   strconv.Itoa(f.prefs.GetInt(prefs.KeyLevel, 1)),
		Project:     f.project,
		Type:        logType(level),
		Condition:   message,
		Trace:       trace(),
		Version:     f.version,
		Platform:    f.device.Platform,
		DeviceModel: f.device.Model,
		DeviceOS:    f.device.OS,
		CreatedAt:   f.clock.Now(),
	}

	select {
	case f.entries <- entry:
	default:
		f.dropped.Add(1)
		metrics.RecordLogForward(resultDropped)
	}
}

// Serve delivers queued entries until ctx is done.
func (f *Forwarder) Serve(ctx context.Context) error {
	log := logging.WithComponent("log-forwarder")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-f.entries:
			if err := f.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			if err := f.client.PostLog(ctx, entry); err != nil {
				metrics.RecordLogForward(resultFailed)
				log.Warn().Err(err).Str("condition", entry.Condition).Msg("Failed to forward log entry")
				continue
			}
			metrics.RecordLogForward(resultSent)
		}
	}
}

// String names the service for the supervisor.
func (f *Forwarder) String() string {
	return "log-forwarder"
}

// Dropped is the number of entries discarded because the buffer was full.
func (f *Forwarder) Dropped() uint64 {
	return f.dropped.Load()
}

// userData prefers the USER_DATA key and falls back to the collector user id.
func (f *Forwarder) userData() string {
	if v := f.prefs.GetString(prefs.KeyUserData, ""); v != "" {
		return v
	}
	return f.prefs.GetString(prefs.KeyUserID, "")
}

func logType(level zerolog.Level) string {
	switch level {
	case zerolog.FatalLevel:
		return "Fatal"
	case zerolog.PanicLevel:
		return "Panic"
	default:
		return "Error"
	}
}

func trace() string {
	s := string(debug.Stack())
	if len(s) > maxTraceSize {
		s = s[:maxTraceSize]
	}
	return strings.TrimSpace(s)
}
