// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package logging provides the process-wide zerolog logger.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Msg("Server starting")
//	logging.Err(err).Msg("Flush failed")
//	logging.Ctx(ctx).Info().Int("events", n).Msg("Batch sent")
//
// Hooks registered with AddHook see every event written through the global
// logger. The collector log forwarder is attached this way.
//
// Always terminate log chains with .Msg() or .Send(); an unterminated
// event is never written.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	Level     string    // trace, debug, info, warn, error, fatal, panic or disabled; default info
	Format    string    // json or console; default json
	Caller    bool      // add file:line
	Timestamp bool      // add a "time" field
	Output    io.Writer // default os.Stderr
}

// DefaultConfig returns JSON at info level to stderr with timestamps.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Timestamp: true, Output: os.Stderr}
}

// global holds the current logger and the hooks every rebuilt logger gets.
var global struct {
	current atomic.Pointer[zerolog.Logger]

	mu    sync.Mutex // serializes rebuilds
	cfg   Config
	hooks []zerolog.Hook
}

//nolint:gochecknoinits // logging must work before Init is called
func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"
	Init(DefaultConfig())
}

// Init configures the global logger. Hooks added with AddHook are kept.
func Init(cfg Config) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.cfg = cfg
	rebuild()
}

// rebuild must be called with global.mu held.
func rebuild() {
	cfg := global.cfg
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	l := ctx.Logger()
	for _, h := range global.hooks {
		l = l.Hook(h)
	}
	global.current.Store(&l)
}

// parseLevel maps a level name to zerolog.Level; anything unknown is info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// AddHook attaches h to the global logger. It survives later Init calls.
func AddHook(h zerolog.Hook) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.hooks = append(global.hooks, h)
	rebuild()
}

// ResetHooks drops every hook and re-initializes with cfg.
// Loggers already derived from the global one keep their hooks.
func ResetHooks(cfg Config) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.hooks = nil
	global.cfg = cfg
	rebuild()
}

// SetLevelString changes the minimum level without rebuilding the logger.
func SetLevelString(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger { return *global.current.Load() }

// With starts a child logger context from the global logger.
func With() zerolog.Context { return Logger().With() }

func Trace() *zerolog.Event { return global.current.Load().Trace() }
func Debug() *zerolog.Event { return global.current.Load().Debug() }
func Info() *zerolog.Event  { return global.current.Load().Info() }
func Warn() *zerolog.Event  { return global.current.Load().Warn() }
func Error() *zerolog.Event { return global.current.Load().Error() }

// Fatal exits the process after the event is written.
func Fatal() *zerolog.Event { return global.current.Load().Fatal() }

// Err logs at error level with err attached, or info when err is nil.
func Err(err error) *zerolog.Event { return global.current.Load().Err(err) }

// NewTestLogger returns a JSON logger writing to w, for tests that assert on output.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
