// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package services adapts blocking components to suture.Service.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
)

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// defaultShutdownTimeout applies when NewHTTPServerService gets a non-positive timeout.
const defaultShutdownTimeout = 10 * time.Second

// HTTPServerService serves the local API until its context ends and then
// drains in-flight requests for at most shutdownTimeout.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	addr            string // logged only; empty for non-*http.Server values
}

func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	svc := &HTTPServerService{server: server, shutdownTimeout: defaultShutdownTimeout}
	if shutdownTimeout > 0 {
		svc.shutdownTimeout = shutdownTimeout
	}
	if hs, ok := server.(*http.Server); ok {
		svc.addr = hs.Addr
	}
	return svc
}

// Serve returns ctx.Err() after a clean shutdown, or the listen or
// shutdown failure otherwise.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	listenErr := make(chan error, 1)
	go func() { listenErr <- h.server.ListenAndServe() }()
	logging.Info().Str("addr", h.addr).Msg("HTTP server listening")

	select {
	case err := <-listenErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	if err := h.drain(); err != nil {
		return err
	}
	<-listenErr
	logging.Info().Str("addr", h.addr).Msg("HTTP server stopped")
	return ctx.Err()
}

// drain runs Shutdown on a fresh deadline; the serve context is already done.
func (h *HTTPServerService) drain() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

func (h *HTTPServerService) String() string { return "http-server" }
