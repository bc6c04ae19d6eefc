// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/zeta/config.yaml",
	"/etc/zeta/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Collector: CollectorConfig{
			BaseURL:             "",
			APIKey:              "",
			ProjectID:           "",
			Timeout:             30 * time.Second,
			BreakerMaxRequests:  3,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      2 * time.Minute,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
		},
		Telemetry: TelemetryConfig{
			BehaviourEnabled: false, // Opt-in: requires collector credentials
			LogEnabled:       false,
			AppVersion:       "0.1.0",
			DeviceModel:      "",
			Platform:         "",
			ViewportWidth:    1080,
			ViewportHeight:   1920,
			Screen:           "game",
			FlushSchedule:    "",
		},
		LogSink: LogSinkConfig{
			RatePerSecond: 2,
			Burst:         5,
			BufferSize:    256,
		},
		Replay: ReplayConfig{
			GestureLeadTime: 330 * time.Millisecond,
			Speed:           1.0,
			RetryObjectID:   "retry_button",
		},
		Prefs: PrefsConfig{
			Backend: PrefsBackendMemory,
			Path:    "/data/prefs",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8787,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in defaults
//  2. Config File: optional YAML config file (if exists)
//  3. Environment Variables: override any mapped setting
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// ZETA_BASE_URL -> collector.base_url, HTTP_PORT -> server.port
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak into config.
var envMappings = map[string]string{
	// Collector
	"zeta_base_url":              "collector.base_url",
	"zeta_api_key":               "collector.api_key",
	"zeta_project_id":            "collector.project_id",
	"zeta_timeout":               "collector.timeout",
	"zeta_breaker_max_requests":  "collector.breaker_max_requests",
	"zeta_breaker_interval":      "collector.breaker_interval",
	"zeta_breaker_timeout":       "collector.breaker_timeout",
	"zeta_breaker_min_requests":  "collector.breaker_min_requests",
	"zeta_breaker_failure_ratio": "collector.breaker_failure_ratio",

	// Telemetry
	"zeta_behaviour_enabled": "telemetry.behaviour_enabled",
	"zeta_log_enabled":       "telemetry.log_enabled",
	"app_version":            "telemetry.app_version",
	"device_model":           "telemetry.device_model",
	"device_platform":        "telemetry.platform",
	"viewport_width":         "telemetry.viewport_width",
	"viewport_height":        "telemetry.viewport_height",
	"telemetry_screen":       "telemetry.screen",
	"flush_schedule":         "telemetry.flush_schedule",

	// Log sink
	"log_sink_rate":   "log_sink.rate_per_second",
	"log_sink_burst":  "log_sink.burst",
	"log_sink_buffer": "log_sink.buffer_size",

	// Replay
	"replay_gesture_lead_time": "replay.gesture_lead_time",
	"replay_speed":             "replay.speed",
	"replay_retry_object_id":   "replay.retry_object_id",

	// Prefs
	"prefs_backend": "prefs.backend",
	"prefs_path":    "prefs.path",

	// Server
	"http_host":         "server.host",
	"http_port":         "server.port",
	"http_timeout":      "server.timeout",
	"cors_origins":      "server.cors_origins",
	"rate_limit_reqs":   "server.rate_limit_reqs",
	"rate_limit_window": "server.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - ZETA_BASE_URL -> collector.base_url
//   - REPLAY_GESTURE_LEAD_TIME -> replay.gesture_lead_time
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// WatchConfigFile calls callback whenever the file at path changes.
// The caller is responsible for reloading and swapping configuration safely.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
