// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordFlush(t *testing.T) {
	tests := []struct {
		name        string
		result      string
		batchSize   int
		wantObserve bool
	}{
		{"success observes duration", FlushSuccess, 3, true},
		{"empty exchange observes duration", FlushEmpty, 0, true},
		{"transport failure observes duration", FlushTransport, 2, true},
		{"busy skips histograms", FlushSkippedBusy, 0, false},
		{"replaying skips histograms", FlushSkippedReplaying, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(FlushTotal.WithLabelValues(tt.result))
			samplesBefore := histogramCount(t, FlushDuration)

			RecordFlush(tt.result, tt.batchSize, 20*time.Millisecond)

			if got := testutil.ToFloat64(FlushTotal.WithLabelValues(tt.result)); got != before+1 {
				t.Errorf("FlushTotal{%s} = %v, want %v", tt.result, got, before+1)
			}
			want := samplesBefore
			if tt.wantObserve {
				want++
			}
			if got := histogramCount(t, FlushDuration); got != want {
				t.Errorf("FlushDuration samples = %d, want %d", got, want)
			}
		})
	}
}

func TestRecordCaptureAndSuppressed(t *testing.T) {
	before := testutil.ToFloat64(EventsCaptured.WithLabelValues("shape_selected"))
	RecordCapture("shape_selected")
	if got := testutil.ToFloat64(EventsCaptured.WithLabelValues("shape_selected")); got != before+1 {
		t.Errorf("EventsCaptured = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(EventsSuppressed.WithLabelValues("replaying"))
	RecordSuppressed("replaying")
	if got := testutil.ToFloat64(EventsSuppressed.WithLabelValues("replaying")); got != before+1 {
		t.Errorf("EventsSuppressed = %v, want %v", got, before+1)
	}
}

func TestRecordReplayEvent(t *testing.T) {
	dispatched := testutil.ToFloat64(ReplayEvents.WithLabelValues("dispatched"))
	skipped := testutil.ToFloat64(ReplayEvents.WithLabelValues("skipped"))

	RecordReplayEvent(true)
	RecordReplayEvent(false)
	RecordReplayEvent(false)

	if got := testutil.ToFloat64(ReplayEvents.WithLabelValues("dispatched")); got != dispatched+1 {
		t.Errorf("dispatched = %v, want %v", got, dispatched+1)
	}
	if got := testutil.ToFloat64(ReplayEvents.WithLabelValues("skipped")); got != skipped+2 {
		t.Errorf("skipped = %v, want %v", got, skipped+2)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/status", "200"))
	RecordAPIRequest("GET", "/api/v1/status", 200, 5*time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/status", "200")); got != before+1 {
		t.Errorf("APIRequestsTotal = %v, want %v", got, before+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("after inc = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("after dec = %v, want %v", got, before)
	}
}
