// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package api is the local control and inspection HTTP API: capture and
// flush behaviours, drive the game, run replays and stream the live feed.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
)

// Router wires handlers to routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. CORS and rate limits come from cfg.
func NewRouter(handler *Handler, cfg *config.ServerConfig) *Router {
	mwCfg := DefaultChiMiddlewareConfig()
	if cfg != nil {
		mwCfg.CORSAllowedOrigins = cfg.CORSOrigins
		mwCfg.RateLimitRequests = cfg.RateLimitReqs
		mwCfg.RateLimitWindow = cfg.RateLimitWindow
	}
	return &Router{handler: handler, chiMiddleware: NewChiMiddleware(mwCfg)}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(RequestLogger)

	h := router.handler

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(PrometheusMetrics)

		r.Get("/status", h.Status)
		r.Post("/events", h.CaptureEvent)
		r.Post("/flush", h.Flush)

		r.Route("/game", func(r chi.Router) {
			r.Get("/", h.GameState)
			r.Post("/tap", h.GameTap)
			r.Post("/retry", h.GameRetry)
		})

		r.Route("/replay", func(r chi.Router) {
			r.Post("/", h.StartReplay)
			r.Get("/", h.ReplayStatus)
			r.Delete("/", h.StopReplay)
		})

		r.Get("/recording", h.Recording)
		r.Delete("/recording", h.ResetRecording)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})

	return r
}
