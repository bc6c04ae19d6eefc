// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Flush results used as the "result" label of FlushTotal.
const (
	FlushSuccess          = "success"
	FlushRejected         = "rejected"
	FlushTransport        = "transport"
	FlushParse            = "parse"
	FlushSkippedBusy      = "skipped_busy"
	FlushSkippedReplaying = "skipped_replaying"
	FlushEmpty            = "empty"
)

var (
	// Queue Metrics
	QueueActiveEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zeta_queue_active_events",
			Help: "Events eligible for the next upload attempt",
		},
	)

	QueueStagedEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zeta_queue_staged_events",
			Help: "Events captured while an upload is in flight",
		},
	)

	EventsCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeta_events_captured_total",
			Help: "Total number of behaviours appended to the queue",
		},
		[]string{"kind"},
	)

	EventsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeta_events_suppressed_total",
			Help: "Total number of behaviours dropped before reaching the queue",
		},
		[]string{"reason"}, // "replaying", "disabled"
	)

	// Upload Metrics
	FlushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeta_flush_total",
			Help: "Total number of flush calls by result",
		},
		[]string{"result"},
	)

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zeta_flush_duration_seconds",
			Help:    "Duration of a collector exchange in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	FlushBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zeta_flush_batch_size",
			Help:    "Number of behaviours sent per exchange",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Log forwarding
	LogForwardTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeta_log_forward_total",
			Help: "Total number of log entries handled by the forwarder",
		},
		[]string{"result"}, // "sent", "failed", "dropped"
	)

	// Replay Metrics
	ReplayRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeta_replay_runs_total",
			Help: "Total number of replay runs by outcome",
		},
		[]string{"outcome"}, // "finished", "stopped", "invalid"
	)

	ReplayEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeta_replay_events_total",
			Help: "Total number of recorded events processed during replay",
		},
		[]string{"action"}, // "dispatched", "skipped"
	)

	ReplayState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zeta_replay_state",
			Help: "Replay engine state (0=idle, 1=loading, 2=running, 3=finished, 4=stopped)",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeta_api_requests_total",
			Help: "Total number of local API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zeta_api_request_duration_seconds",
			Help:    "Local API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zeta_api_active_requests",
			Help: "Current number of active local API requests",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zeta_websocket_connections",
			Help: "Current number of live feed WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zeta_websocket_messages_sent_total",
			Help: "Total number of live feed messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeta_websocket_errors_total",
			Help: "Total number of live feed WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Bus Metrics
	BusMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeta_bus_messages_published_total",
			Help: "Total number of messages published on the in-process bus",
		},
		[]string{"topic"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zeta_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeta_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zeta_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zeta_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordCapture records a behaviour that reached the queue.
func RecordCapture(kind string) {
	EventsCaptured.WithLabelValues(kind).Inc()
}

// RecordSuppressed records a behaviour dropped before the queue.
func RecordSuppressed(reason string) {
	EventsSuppressed.WithLabelValues(reason).Inc()
}

// RecordFlush records the result of a flush call. Duration and batch size
// are only observed for calls that reached the collector.
func RecordFlush(result string, batchSize int, duration time.Duration) {
	FlushTotal.WithLabelValues(result).Inc()
	switch result {
	case FlushSkippedBusy, FlushSkippedReplaying:
		return
	}
	FlushDuration.Observe(duration.Seconds())
	FlushBatchSize.Observe(float64(batchSize))
}

// RecordReplayRun records how a replay run ended.
func RecordReplayRun(outcome string) {
	ReplayRuns.WithLabelValues(outcome).Inc()
}

// RecordReplayEvent records one processed recorded event.
func RecordReplayEvent(dispatched bool) {
	if dispatched {
		ReplayEvents.WithLabelValues("dispatched").Inc()
		return
	}
	ReplayEvents.WithLabelValues("skipped").Inc()
}

// RecordLogForward records a log forwarder result.
func RecordLogForward(result string) {
	LogForwardTotal.WithLabelValues(result).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
