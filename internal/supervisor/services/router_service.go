// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package services

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
)

// RouterBuilder returns a router with its handlers registered. A Watermill
// router can only run once, so every (re)start builds a new one.
type RouterBuilder func() (*message.Router, error)

// RouterService runs a Watermill router under supervision.
type RouterService struct {
	build   RouterBuilder
	name    string
	running chan struct{}
}

// NewRouterService creates a router service.
func NewRouterService(name string, build RouterBuilder) *RouterService {
	return &RouterService{build: build, name: name, running: make(chan struct{})}
}

// Serve builds a router and runs it until ctx is canceled.
func (r *RouterService) Serve(ctx context.Context) error {
	router, err := r.build()
	if err != nil {
		return fmt.Errorf("%s: build router: %w", r.name, err)
	}

	go func() {
		select {
		case <-router.Running():
			select {
			case <-r.running:
			default:
				close(r.running)
			}
		case <-ctx.Done():
		}
	}()

	if err := router.Run(ctx); err != nil {
		return fmt.Errorf("%s: %w", r.name, err)
	}
	return ctx.Err()
}

// Running is closed once the first router has started its handlers.
func (r *RouterService) Running() <-chan struct{} {
	return r.running
}

// String names the service for the supervisor.
func (r *RouterService) String() string {
	return r.name
}
