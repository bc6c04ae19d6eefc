// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/api"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/bus"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/collector"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/game"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logsink"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/prefs"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/recorder"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/replay"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/scheduler"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/supervisor"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/supervisor/services"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/telemetry"
	ws "github.com/AnhPham/Zeta-Game-Analysis/internal/websocket"
)

// busBuffer is the per-subscriber buffer of the event bus.
const busBuffer = 256

//nolint:gocyclo // Sequential wiring of every component
func runServe(ctx context.Context, cfg *config.Config) error {
	logging.Info().
		Bool("behaviour_enabled", cfg.Telemetry.BehaviourEnabled).
		Bool("log_enabled", cfg.Telemetry.LogEnabled).
		Str("prefs_backend", cfg.Prefs.Backend).
		Msg("Starting zeta with supervisor tree")

	store, err := prefs.Open(&cfg.Prefs)
	if err != nil {
		return fmt.Errorf("open prefs: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing prefs store")
		}
	}()

	// Collector client with circuit breaker; absent when no collector is configured
	var client collector.Client
	if cfg.Collector.BaseURL != "" {
		client = collector.NewCircuitBreakerClient(collector.NewHTTPClient(&cfg.Collector), &cfg.Collector)
	} else {
		logging.Info().Msg("No collector configured - uploads disabled")
	}

	eventBus := bus.New(busBuffer)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	tel := telemetry.New(cfg, client, store, telemetry.WithPublisher(eventBus))

	controller := game.New(tel, game.Config{
		Screen:          cfg.Telemetry.Screen,
		ResultDelay:     game.DefaultResultDelay,
		RegenerateDelay: game.DefaultRegenerateDelay,
	})
	defer controller.Close()
	controller.ResetToResumeLevel()

	hub := ws.NewHub()

	engine := replay.New(tel.Gate, controller, replay.Config{
		Pointer:         replay.NewLogPointer(logging.WithComponent("pointer")),
		Viewport:        replay.ViewportSinks{tel, ws.ViewportNotifier{Hub: hub}},
		GestureLeadTime: cfg.Replay.GestureLeadTime,
		Speed:           cfg.Replay.Speed,
		RetryIDs:        retryIDs(cfg),
		OnStep: func(step replay.Step) {
			if err := eventBus.Publish(context.Background(), bus.TopicReplayStep, step); err != nil {
				logging.Warn().Err(err).Int("index", step.Index).Msg("Failed to publish replay step")
			}
		},
	})

	rec := recorder.New(tel, cfg.Collector.ProjectID)

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())

	// === DATA LAYER ===

	if cfg.Telemetry.LogEnabled {
		if client == nil {
			logging.Warn().Msg("Log forwarding enabled without a collector - skipping")
		} else {
			forwarder := logsink.New(client, store, tel.Device(), cfg)
			logging.AddHook(forwarder)
			tree.AddDataService(forwarder)
			logging.Info().Msg("Log forwarder added to supervisor tree")
		}
	}

	// === MESSAGING LAYER ===

	tree.AddMessagingService(services.NewRouterService("bus-router", func() (*message.Router, error) {
		router, err := eventBus.NewRouter()
		if err != nil {
			return nil, err
		}
		rec.Attach(router, eventBus.Subscriber())
		ws.AttachFeed(router, eventBus.Subscriber(), hub)
		return router, nil
	}))
	tree.AddMessagingService(hub)

	if cfg.Telemetry.FlushSchedule != "" {
		sched, err := scheduler.New(cfg.Telemetry.FlushSchedule, tel.Uploader)
		if err != nil {
			return err
		}
		tree.AddMessagingService(sched)
		logging.Info().Str("schedule", cfg.Telemetry.FlushSchedule).Msg("Flush scheduler added")
	}

	// === API LAYER ===

	handler := api.NewHandler(api.Deps{
		Telemetry: tel,
		Game:      controller,
		Engine:    engine,
		Recorder:  rec,
		Hub:       hub,
		Config:    cfg,
	})
	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           api.NewRouter(handler, &cfg.Server).SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	// === START SUPERVISOR TREE ===

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown requested, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	engine.Stop()
	tel.Wait()
	logging.Info().Msg("Application stopped gracefully")
	return nil
}
