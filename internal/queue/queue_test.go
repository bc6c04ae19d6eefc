// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package queue

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/gate"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
)

var base = time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

func rec(id string) models.EventRecord {
	return models.NewEventRecord(models.KindShapeSelected, 1, "game", id, 0, 0, "1.0.0", base)
}

func ids(events []models.EventRecord) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ObjectID
	}
	return out
}

func assertIDs(t *testing.T, got []models.EventRecord, want ...string) {
	t.Helper()
	g := ids(got)
	if fmt.Sprint(g) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", g, want)
	}
}

func TestQueue_AppendPreservesOrder(t *testing.T) {
	t.Parallel()

	q := New(gate.New())
	var want []string
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("e%d", i)
		want = append(want, id)
		if !q.Append(rec(id)) {
			t.Fatalf("Append(%s) = false", id)
		}
	}
	assertIDs(t, q.Pending(), want...)
}

func TestQueue_AppendSuppressedWhileReplaying(t *testing.T) {
	t.Parallel()

	g := gate.New()
	q := New(g)
	q.Append(rec("e1"))

	g.EnterReplay()
	if q.Append(rec("e2")) {
		t.Error("Append() while replaying = true, want false")
	}
	assertIDs(t, q.Pending(), "e1")

	g.ExitReplay()
	if !q.Append(rec("e3")) {
		t.Error("Append() after replay = false, want true")
	}
	assertIDs(t, q.Pending(), "e1", "e3")
}

func TestQueue_SnapshotScenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		success bool
		want    []string
	}{
		{"success drops acknowledged snapshot", true, []string{"e3"}},
		{"failure retains snapshot then staged", false, []string{"e1", "e2", "e3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := New(gate.New())
			q.Append(rec("e1"))
			q.Append(rec("e2"))

			snap, err := q.BeginSnapshot()
			if err != nil {
				t.Fatalf("BeginSnapshot() error = %v", err)
			}
			assertIDs(t, snap, "e1", "e2")

			q.Append(rec("e3"))
			assertIDs(t, snap, "e1", "e2")
			if s := q.Stats(); s.Active != 2 || s.Staged != 1 || !s.InFlight {
				t.Errorf("Stats() mid-flight = %+v", s)
			}

			q.CompleteSnapshot(tt.success)
			assertIDs(t, q.Pending(), tt.want...)
			if q.InFlight() {
				t.Error("InFlight() = true after CompleteSnapshot")
			}
			if s := q.Stats(); s.Staged != 0 {
				t.Errorf("Staged = %d, want 0", s.Staged)
			}
		})
	}
}

func TestQueue_BeginSnapshotBusy(t *testing.T) {
	t.Parallel()

	q := New(gate.New())
	if _, err := q.BeginSnapshot(); err != nil {
		t.Fatalf("first BeginSnapshot() error = %v", err)
	}
	if _, err := q.BeginSnapshot(); !errors.Is(err, ErrBusy) {
		t.Errorf("second BeginSnapshot() error = %v, want ErrBusy", err)
	}
	q.CompleteSnapshot(true)
	if _, err := q.BeginSnapshot(); err != nil {
		t.Errorf("BeginSnapshot() after complete error = %v", err)
	}
}

func TestQueue_SnapshotDoesNotAlias(t *testing.T) {
	t.Parallel()

	q := New(gate.New())
	q.Append(rec("e1"))

	snap, _ := q.BeginSnapshot()
	snap[0].ObjectID = "mutated"
	q.CompleteSnapshot(false)

	assertIDs(t, q.Pending(), "e1")
}

func TestQueue_CompleteWithoutSnapshotIsNoop(t *testing.T) {
	t.Parallel()

	q := New(gate.New())
	q.Append(rec("e1"))
	q.CompleteSnapshot(true)
	assertIDs(t, q.Pending(), "e1")
}

func TestQueue_FailedAttemptsKeepOlderEventsFirst(t *testing.T) {
	t.Parallel()

	q := New(gate.New())
	q.Append(rec("e1"))

	for i, next := range []string{"e2", "e3"} {
		if _, err := q.BeginSnapshot(); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		q.Append(rec(next))
		q.CompleteSnapshot(false)
	}
	assertIDs(t, q.Pending(), "e1", "e2", "e3")

	snap, _ := q.BeginSnapshot()
	assertIDs(t, snap, "e1", "e2", "e3")
	q.CompleteSnapshot(true)
	if n := len(q.Pending()); n != 0 {
		t.Errorf("Pending() after success = %d events, want 0", n)
	}
}

func TestQueue_ConcurrentCaptureDuringUploads(t *testing.T) {
	t.Parallel()

	q := New(gate.New())
	const writers, perWriter = 8, 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				q.Append(rec(fmt.Sprintf("w%d-%d", w, i)))
			}
		}(w)
	}

	delivered := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
		}
		snap, err := q.BeginSnapshot()
		if err != nil {
			t.Fatalf("BeginSnapshot() error = %v", err)
		}
		delivered += len(snap)
		q.CompleteSnapshot(true)
	}

	if got := delivered + len(q.Pending()); got != writers*perWriter {
		t.Errorf("delivered+pending = %d, want %d", got, writers*perWriter)
	}
}
