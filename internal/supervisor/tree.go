// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package supervisor runs the long-lived services of the serve command
// under a suture tree.
//
// The tree has three layers so a crash in one does not take down the others:
//
//	zeta
//	├── data-layer       log forwarder
//	├── messaging-layer  bus router (recorder, live feed), websocket hub, flush scheduler
//	└── api-layer        HTTP server
package supervisor

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer names one child supervisor of the tree.
type Layer string

const (
	LayerData      Layer = "data-layer"
	LayerMessaging Layer = "messaging-layer"
	LayerAPI       Layer = "api-layer"
)

// layerOrder is the start order; shutdown runs in reverse.
var layerOrder = [...]Layer{LayerData, LayerMessaging, LayerAPI}

// TreeConfig is the restart and shutdown policy shared by every layer.
// Zero fields take the DefaultTreeConfig value.
type TreeConfig struct {
	FailureThreshold float64       // failures before backoff
	FailureDecay     float64       // seconds for the failure count to decay
	FailureBackoff   time.Duration // pause once the threshold is crossed
	ShutdownTimeout  time.Duration // per service
}

// DefaultTreeConfig mirrors suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	return TreeConfig{
		FailureThreshold: cmp.Or(c.FailureThreshold, d.FailureThreshold),
		FailureDecay:     cmp.Or(c.FailureDecay, d.FailureDecay),
		FailureBackoff:   cmp.Or(c.FailureBackoff, d.FailureBackoff),
		ShutdownTimeout:  cmp.Or(c.ShutdownTimeout, d.ShutdownTimeout),
	}
}

func (c TreeConfig) spec() suture.Spec {
	return suture.Spec{
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// SupervisorTree is the root "zeta" supervisor with one child per Layer.
type SupervisorTree struct {
	root   *suture.Supervisor
	layers map[Layer]*suture.Supervisor
	config TreeConfig
}

// NewSupervisorTree builds the tree. Restarts and failures of every layer
// are reported through logger.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) *SupervisorTree {
	config = config.withDefaults()

	rootSpec := config.spec()
	rootSpec.EventHook = (&sutureslog.Handler{Logger: logger}).MustHook()

	t := &SupervisorTree{
		root:   suture.New("zeta", rootSpec),
		layers: make(map[Layer]*suture.Supervisor, len(layerOrder)),
		config: config,
	}
	for _, layer := range layerOrder {
		child := suture.New(string(layer), config.spec())
		t.layers[layer] = child
		t.root.Add(child)
	}
	return t
}

// Add places svc in layer. It panics on a layer the tree does not have.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) suture.ServiceToken {
	sup, ok := t.layers[layer]
	if !ok {
		panic(fmt.Sprintf("supervisor: unknown layer %q", layer))
	}
	return sup.Add(svc)
}

func (t *SupervisorTree) AddDataService(svc suture.Service) suture.ServiceToken {
	return t.Add(LayerData, svc)
}

func (t *SupervisorTree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.Add(LayerMessaging, svc)
}

func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.Add(LayerAPI, svc)
}

func (t *SupervisorTree) Root() *suture.Supervisor { return t.root }

// Serve blocks until ctx is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error { return t.root.Serve(ctx) }

// ServeBackground starts the tree and returns a channel that receives its exit error.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
