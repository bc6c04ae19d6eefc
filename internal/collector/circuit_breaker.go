// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package collector

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/metrics"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
)

// breakerName labels the collector breaker in logs and metrics.
const breakerName = "collector"

// CircuitBreakerClient stops calling the collector after a run of failed
// requests and probes it again once BreakerTimeout has passed.
//
// A response with Success=false counts as a successful call: the collector
// answered. Transport and parse errors count as failures. Calls rejected by
// an open breaker return an error matching both ErrTransport and ErrCircuitOpen.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[*models.CollectorResponse]
}

// NewCircuitBreakerClient wraps client using the breaker settings in cfg.
func NewCircuitBreakerClient(client Client, cfg *config.CollectorConfig) *CircuitBreakerClient {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(float64(gobreaker.StateClosed))
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)

	settings := gobreaker.Settings{
		Name:          breakerName,
		MaxRequests:   cfg.BreakerMaxRequests,
		Interval:      cfg.BreakerInterval,
		Timeout:       cfg.BreakerTimeout,
		ReadyToTrip:   tripOnRatio(cfg.BreakerMinRequests, cfg.BreakerFailureRatio),
		OnStateChange: recordTransition,
	}
	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker[*models.CollectorResponse](settings),
	}
}

// tripOnRatio opens the breaker once at least minRequests calls were made
// in the current interval and the failed share reaches ratio.
func tripOnRatio(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < minRequests {
			return false
		}
		failed := float64(counts.TotalFailures) / float64(counts.Requests)
		if failed < ratio {
			return false
		}
		logging.Warn().
			Uint32("failures", counts.TotalFailures).
			Uint32("requests", counts.Requests).
			Float64("failure_ratio", failed).
			Msg("Opening collector circuit")
		return true
	}
}

// recordTransition exports the new state. Gauge values follow gobreaker's
// ordering: 0 closed, 1 half-open, 2 open.
func recordTransition(name string, from, to gobreaker.State) {
	logging.Info().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("Collector circuit state changed")

	metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	if to == gobreaker.StateClosed {
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
	}
}

// PostBehaviours sends a batch through the breaker.
func (c *CircuitBreakerClient) PostBehaviours(ctx context.Context, session *models.Session) (*models.CollectorResponse, error) {
	return c.execute(func() (*models.CollectorResponse, error) {
		return c.client.PostBehaviours(ctx, session)
	})
}

// PostLog forwards a log entry through the same breaker as behaviour uploads.
func (c *CircuitBreakerClient) PostLog(ctx context.Context, entry LogEntry) error {
	_, err := c.execute(func() (*models.CollectorResponse, error) {
		return nil, c.client.PostLog(ctx, entry)
	})
	return err
}

// State returns "closed", "half-open" or "open".
func (c *CircuitBreakerClient) State() string {
	return c.cb.State().String()
}

func (c *CircuitBreakerClient) execute(fn func() (*models.CollectorResponse, error)) (*models.CollectorResponse, error) {
	resp, err := c.cb.Execute(fn)

	outcome := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		logging.Debug().Err(err).Msg("Collector call rejected by open circuit")
		return nil, fmt.Errorf("%w: %w: %v", ErrTransport, ErrCircuitOpen, err)
	case err != nil:
		outcome = "failure"
	}

	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, outcome).Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(float64(c.cb.Counts().ConsecutiveFailures))
	if err != nil {
		return nil, err
	}
	return resp, nil
}
