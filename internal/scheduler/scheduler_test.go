// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/telemetry"
)

type countingFlusher struct {
	calls   atomic.Int32
	outcome telemetry.FlushOutcome
	err     error
}

func (f *countingFlusher) Flush(_ context.Context, _ telemetry.SuccessFunc, onError telemetry.ErrorFunc) telemetry.FlushOutcome {
	f.calls.Add(1)
	if f.err != nil && onError != nil {
		onError(f.err)
	}
	return f.outcome
}

func TestNew_InvalidSpec(t *testing.T) {
	t.Parallel()
	for _, spec := range []string{"", "every minute", "* * *"} {
		if _, err := New(spec, &countingFlusher{}); err == nil {
			t.Errorf("New(%q) expected error", spec)
		}
	}
}

func TestNext(t *testing.T) {
	t.Parallel()
	s, err := New("*/5 * * * *", &countingFlusher{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	from := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	if got, want := s.Next(from), time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestRunOnce(t *testing.T) {
	t.Parallel()
	f := &countingFlusher{outcome: telemetry.FlushFailed, err: errors.New("boom")}
	s, err := New("@every 1h", f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.RunOnce(context.Background()); got != telemetry.FlushFailed {
		t.Errorf("outcome = %v", got)
	}
	if f.calls.Load() != 1 {
		t.Errorf("calls = %d", f.calls.Load())
	}
}

func TestServe_FlushesUntilCanceled(t *testing.T) {
	f := &countingFlusher{outcome: telemetry.FlushSucceeded}
	s, err := New("@every 1s", f)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for f.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no scheduled flush")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
