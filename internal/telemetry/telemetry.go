// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

/*
Package telemetry wires capture and delivery together.

A Telemetry value is built once at process start and handed to whatever
needs it (the game, the replay engine, the API). It owns:

	Gate      Capturing or Replaying
	Queue     pending behaviours
	Tracker   capture entry point used by gameplay
	Uploader  the two-phase flush against the collector

Nothing here is a global; tests build as many independent instances as
they like.
*/
package telemetry

import (
	"os"
	"runtime"
	"sync"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/bus"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/clock"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/collector"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/gate"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/prefs"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/queue"
)

// DeviceInfo is the device and viewport context attached to every upload.
type DeviceInfo struct {
	Model    string `json:"device_model"`
	Platform string `json:"platform"`
	OS       string `json:"device_os"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// DeviceInfoFromConfig fills unset fields from the host.
func DeviceInfoFromConfig(cfg *config.TelemetryConfig) DeviceInfo {
	info := DeviceInfo{
		Model:    cfg.DeviceModel,
		Platform: cfg.Platform,
		OS:       runtime.GOOS + "/" + runtime.GOARCH,
		Width:    cfg.ViewportWidth,
		Height:   cfg.ViewportHeight,
	}
	if info.Model == "" {
		if host, err := os.Hostname(); err == nil {
			info.Model = host
		}
	}
	if info.Platform == "" {
		info.Platform = runtime.GOOS
	}
	return info
}

// PointerSource reports the pointer position at capture time.
type PointerSource interface {
	Position() (x, y float64)
}

// Pointer is a settable PointerSource. Input handlers move it before
// capturing the behaviour that the input caused.
type Pointer struct {
	mu   sync.RWMutex
	x, y float64
}

// Set moves the pointer.
func (p *Pointer) Set(x, y float64) {
	p.mu.Lock()
	p.x, p.y = x, y
	p.mu.Unlock()
}

// Position returns the last position set.
func (p *Pointer) Position() (x, y float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.x, p.y
}

// Telemetry is the process-wide context object.
type Telemetry struct {
	Gate     *gate.Gate
	Queue    *queue.Queue
	Tracker  *Tracker
	Uploader *Uploader
	Prefs    prefs.Store
	Pointer  *Pointer

	device *deviceHolder
}

// Option customizes New.
type Option func(*options)

type options struct {
	clock     clock.Clock
	publisher bus.Publisher
	pointer   PointerSource
	device    *DeviceInfo
}

// WithClock sets the clock used for capture timestamps and flush timing.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithPublisher publishes every captured behaviour on the bus.
func WithPublisher(p bus.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithPointerSource replaces the settable Pointer as the capture position source.
func WithPointerSource(p PointerSource) Option {
	return func(o *options) { o.pointer = p }
}

// WithDeviceInfo overrides the device context derived from configuration.
func WithDeviceInfo(d DeviceInfo) Option {
	return func(o *options) { o.device = &d }
}

// New builds a Telemetry context. client may be nil when behaviour upload is disabled.
func New(cfg *config.Config, client collector.Client, store prefs.Store, opts ...Option) *Telemetry {
	o := options{clock: clock.NewReal()}
	for _, opt := range opts {
		opt(&o)
	}

	device := DeviceInfoFromConfig(&cfg.Telemetry)
	if o.device != nil {
		device = *o.device
	}
	holder := &deviceHolder{info: device}

	pointer := &Pointer{}
	var source PointerSource = pointer
	if o.pointer != nil {
		source = o.pointer
	}

	g := gate.New()
	q := queue.New(g)
	enabled := cfg.Telemetry.BehaviourEnabled

	t := &Telemetry{
		Gate:    g,
		Queue:   q,
		Prefs:   store,
		Pointer: pointer,
		device:  holder,
	}
	t.Tracker = &Tracker{
		enabled:    enabled,
		gate:       g,
		queue:      q,
		pointer:    source,
		clock:      o.clock,
		appVersion: cfg.Telemetry.AppVersion,
		screen:     cfg.Telemetry.Screen,
		publisher:  o.publisher,
	}
	t.Uploader = &Uploader{
		enabled:   enabled && client != nil,
		gate:      g,
		queue:     q,
		client:    client,
		prefs:     store,
		device:    holder,
		projectID: cfg.Collector.ProjectID,
		clock:     o.clock,
	}
	return t
}

// Device returns the current device context.
func (t *Telemetry) Device() DeviceInfo {
	return t.device.get()
}

// SetViewport updates the viewport reported with later uploads.
func (t *Telemetry) SetViewport(width, height int) {
	t.device.setViewport(width, height)
}

// UserID returns the collector-assigned user id, or "".
func (t *Telemetry) UserID() string {
	return t.Prefs.GetString(prefs.KeyUserID, "")
}

// Wait blocks until every FlushAsync started so far has returned.
func (t *Telemetry) Wait() {
	t.Uploader.Wait()
}

type deviceHolder struct {
	mu   sync.RWMutex
	info DeviceInfo
}

func (d *deviceHolder) get() DeviceInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.info
}

func (d *deviceHolder) setViewport(width, height int) {
	d.mu.Lock()
	d.info.Width, d.info.Height = width, height
	d.mu.Unlock()
}
