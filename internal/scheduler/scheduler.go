// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package scheduler runs opportunistic behaviour uploads on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/telemetry"
)

// Flusher is the uploader surface the scheduler drives.
type Flusher interface {
	Flush(ctx context.Context, onSuccess telemetry.SuccessFunc, onError telemetry.ErrorFunc) telemetry.FlushOutcome
}

// FlushScheduler flushes on spec. Overlapping runs are skipped.
type FlushScheduler struct {
	spec     string
	schedule cron.Schedule
	flusher  Flusher
	logger   zerolog.Logger
}

// New parses spec (standard five-field cron or descriptors such as "@every 30s").
func New(spec string, flusher Flusher) (*FlushScheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid flush schedule %q: %w", spec, err)
	}
	return &FlushScheduler{
		spec:     spec,
		schedule: schedule,
		flusher:  flusher,
		logger:   logging.WithComponent("scheduler"),
	}, nil
}

// String names the service for the supervisor.
func (s *FlushScheduler) String() string {
	return "flush-scheduler"
}

// Next returns the next activation after t.
func (s *FlushScheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Serve runs the schedule until ctx is done, then waits for a running flush.
func (s *FlushScheduler) Serve(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() { s.RunOnce(ctx) }))
	c.Start()
	s.logger.Info().Str("schedule", s.spec).Msg("Flush scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info().Msg("Flush scheduler stopped")
	return ctx.Err()
}

// RunOnce performs one scheduled flush.
func (s *FlushScheduler) RunOnce(ctx context.Context) telemetry.FlushOutcome {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	outcome := s.flusher.Flush(ctx, nil, func(err error) {
		logging.Ctx(ctx).Warn().Err(err).Msg("Scheduled flush failed")
	})
	logging.Ctx(ctx).Debug().Str("outcome", outcome.String()).Msg("Scheduled flush")
	return outcome
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Err(err).Fields(keysAndValues).Msg(msg)
}
