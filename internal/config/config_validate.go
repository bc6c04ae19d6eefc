// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateCollector(); err != nil {
		return err
	}
	if err := c.validateTelemetry(); err != nil {
		return err
	}
	if err := c.validateLogSink(); err != nil {
		return err
	}
	if err := c.validateReplay(); err != nil {
		return err
	}
	if err := c.validatePrefs(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

// validateCollector only applies when a feature that talks to the collector is enabled.
func (c *Config) validateCollector() error {
	if !c.Telemetry.BehaviourEnabled && !c.Telemetry.LogEnabled {
		return nil
	}
	if c.Collector.BaseURL == "" {
		return fmt.Errorf("ZETA_BASE_URL is required when behaviour or log features are enabled")
	}
	if err := validateHTTPURL(c.Collector.BaseURL, "ZETA_BASE_URL"); err != nil {
		return fmt.Errorf("ZETA_BASE_URL is invalid: %w", err)
	}
	if c.Collector.APIKey == "" {
		return fmt.Errorf("ZETA_API_KEY is required when behaviour or log features are enabled")
	}
	if c.Collector.BreakerFailureRatio <= 0 || c.Collector.BreakerFailureRatio > 1 {
		return fmt.Errorf("ZETA_BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.Collector.BreakerFailureRatio)
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	if c.Telemetry.ViewportWidth < 0 || c.Telemetry.ViewportHeight < 0 {
		return fmt.Errorf("viewport dimensions must not be negative")
	}
	if c.Telemetry.FlushSchedule != "" {
		if _, err := cron.ParseStandard(c.Telemetry.FlushSchedule); err != nil {
			return fmt.Errorf("FLUSH_SCHEDULE is invalid: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLogSink() error {
	if !c.Telemetry.LogEnabled {
		return nil
	}
	if c.LogSink.RatePerSecond <= 0 {
		return fmt.Errorf("LOG_SINK_RATE must be positive")
	}
	if c.LogSink.Burst < 1 {
		return fmt.Errorf("LOG_SINK_BURST must be at least 1")
	}
	if c.LogSink.BufferSize < 1 {
		return fmt.Errorf("LOG_SINK_BUFFER must be at least 1")
	}
	return nil
}

func (c *Config) validateReplay() error {
	if c.Replay.GestureLeadTime < 0 {
		return fmt.Errorf("REPLAY_GESTURE_LEAD_TIME must not be negative")
	}
	if c.Replay.Speed <= 0 {
		return fmt.Errorf("REPLAY_SPEED must be positive, got %v", c.Replay.Speed)
	}
	return nil
}

func (c *Config) validatePrefs() error {
	switch c.Prefs.Backend {
	case PrefsBackendMemory:
		return nil
	case PrefsBackendBadger, PrefsBackendSQLite:
		if c.Prefs.Path == "" {
			return fmt.Errorf("PREFS_PATH is required when PREFS_BACKEND=%s", c.Prefs.Backend)
		}
		return nil
	default:
		return fmt.Errorf("PREFS_BACKEND must be %q, %q or %q, got %q",
			PrefsBackendMemory, PrefsBackendBadger, PrefsBackendSQLite, c.Prefs.Backend)
	}
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQS must not be negative")
	}
	if c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	return nil
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL is invalid: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

// validateHTTPURL validates that a URL is properly formatted for HTTP/HTTPS services.
// Paths are allowed so the collector can live under a prefix.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}
