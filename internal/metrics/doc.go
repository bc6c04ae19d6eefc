// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

/*
Package metrics provides Prometheus instrumentation for the telemetry
pipeline, the replay engine and the local control API.

All collectors are registered on the default registry through promauto and
exposed at /metrics:

	curl http://localhost:8787/metrics

# Available Metrics

Queue:
  - zeta_queue_active_events, zeta_queue_staged_events (gauges)
  - zeta_events_captured_total{kind}
  - zeta_events_suppressed_total{reason}

Upload:
  - zeta_flush_total{result}: success, rejected, transport, parse,
    skipped_busy, skipped_replaying, empty
  - zeta_flush_duration_seconds, zeta_flush_batch_size (histograms)
  - zeta_circuit_breaker_* for the collector breaker

Replay:
  - zeta_replay_runs_total{outcome}
  - zeta_replay_events_total{action}
  - zeta_replay_state

Other:
  - zeta_log_forward_total{result}
  - zeta_api_requests_total, zeta_api_request_duration_seconds
  - zeta_websocket_connections, zeta_websocket_messages_sent_total
  - zeta_bus_messages_published_total{topic}
*/
package metrics
