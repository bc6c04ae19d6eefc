// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package config

import "time"

// Config holds all application configuration.
// Uses koanf struct tags for layered configuration loading.
type Config struct {
	Collector CollectorConfig `koanf:"collector"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	LogSink   LogSinkConfig   `koanf:"log_sink"`
	Replay    ReplayConfig    `koanf:"replay"`
	Prefs     PrefsConfig     `koanf:"prefs"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// CollectorConfig configures the remote behaviour collector.
type CollectorConfig struct {
	BaseURL   string        `koanf:"base_url"`
	APIKey    string        `koanf:"api_key"`
	ProjectID string        `koanf:"project_id"`
	Timeout   time.Duration `koanf:"timeout"`

	// Circuit breaker settings
	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"`  // Requests allowed while half-open
	BreakerInterval     time.Duration `koanf:"breaker_interval"`      // Count reset period while closed
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`       // Open period before half-open
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`  // Requests before the ratio is considered
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"` // Trip threshold, 0..1
}

// TelemetryConfig configures capture and upload.
type TelemetryConfig struct {
	BehaviourEnabled bool   `koanf:"behaviour_enabled"`
	LogEnabled       bool   `koanf:"log_enabled"`
	AppVersion       string `koanf:"app_version"`
	DeviceModel      string `koanf:"device_model"`
	Platform         string `koanf:"platform"`
	ViewportWidth    int    `koanf:"viewport_width"`
	ViewportHeight   int    `koanf:"viewport_height"`
	Screen           string `koanf:"screen"`

	// FlushSchedule is a cron spec for opportunistic flushes. Empty disables it.
	FlushSchedule string `koanf:"flush_schedule"`
}

// LogSinkConfig configures forwarding of error logs to the collector.
type LogSinkConfig struct {
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`
	BufferSize    int     `koanf:"buffer_size"`
}

// ReplayConfig configures the replay engine.
type ReplayConfig struct {
	GestureLeadTime time.Duration `koanf:"gesture_lead_time"`
	Speed           float64       `koanf:"speed"` // 1.0 = recorded pace
	RetryObjectID   string        `koanf:"retry_object_id"`
}

// PrefsConfig selects the persisted key-value store.
type PrefsConfig struct {
	Backend string `koanf:"backend"` // "memory", "badger" or "sqlite"
	Path    string `koanf:"path"`
}

// ServerConfig configures the local control API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json, console
	Caller bool   `koanf:"caller"`
}

// Supported prefs backends.
const (
	PrefsBackendMemory = "memory"
	PrefsBackendBadger = "badger"
	PrefsBackendSQLite = "sqlite"
)
