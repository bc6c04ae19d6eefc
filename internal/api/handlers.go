// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/game"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/queue"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/recorder"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/replay"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/telemetry"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/validation"
	ws "github.com/AnhPham/Zeta-Game-Analysis/internal/websocket"
)

// maxBodyBytes bounds request bodies. Recorded sessions are the largest.
const maxBodyBytes = 8 << 20

// Handler serves the local control API.
type Handler struct {
	tel      *telemetry.Telemetry
	game     *game.Controller
	engine   *replay.Engine
	recorder *recorder.Recorder
	hub      *ws.Hub
	config   *config.Config
	started  time.Time
}

// Deps are the components the API exposes. Recorder and Hub may be nil.
type Deps struct {
	Telemetry *telemetry.Telemetry
	Game      *game.Controller
	Engine    *replay.Engine
	Recorder  *recorder.Recorder
	Hub       *ws.Hub
	Config    *config.Config
}

// NewHandler creates a handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		tel:      d.Telemetry,
		game:     d.Game,
		engine:   d.Engine,
		recorder: d.Recorder,
		hub:      d.Hub,
		config:   d.Config,
		started:  time.Now(),
	}
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Gate    string               `json:"gate"`
	Queue   queue.Stats          `json:"queue"`
	UserID  string               `json:"user_id,omitempty"`
	Device  telemetry.DeviceInfo `json:"device"`
	Replay  replay.Progress      `json:"replay"`
	Clients int                  `json:"ws_clients"`
	Uptime  string               `json:"uptime"`
}

// CaptureRequest is the body of POST /api/v1/events.
type CaptureRequest struct {
	Kind     string  `json:"behaviour_id" validate:"required,behaviour_kind"`
	Level    int     `json:"level" validate:"gte=0"`
	Screen   string  `json:"screen" validate:"max=64"`
	ObjectID string  `json:"object_id" validate:"max=64"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// TapRequest is the body of POST /api/v1/game/tap.
type TapRequest struct {
	X      float64 `json:"x" validate:"gte=0"`
	Y      float64 `json:"y" validate:"gte=0"`
	Target string  `json:"target" validate:"omitempty,shape|eq=retry_button"`
}

// FlushResponse reports a synchronous flush.
type FlushResponse struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]string{"status": "ok"})
}

// Status reports gate, queue and replay state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Gate:   h.tel.Gate.State().String(),
		Queue:  h.tel.Queue.Stats(),
		UserID: h.tel.UserID(),
		Device: h.tel.Device(),
		Uptime: time.Since(h.started).Round(time.Second).String(),
	}
	if h.engine != nil {
		resp.Replay = h.engine.Progress()
	}
	if h.hub != nil {
		resp.Clients = h.hub.GetClientCount()
	}
	WriteSuccess(w, r, resp)
}

// CaptureEvent records one behaviour from an external input source.
func (h *Handler) CaptureEvent(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	screen := req.Screen
	if screen == "" {
		screen = h.tel.Tracker.Screen()
	}
	h.tel.Pointer.Set(req.X, req.Y)
	captured := h.tel.Tracker.Add(req.Kind, req.Level, screen, req.ObjectID)
	WriteSuccess(w, r, map[string]bool{"captured": captured})
}

// Flush uploads the queue and waits for the outcome.
func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	var flushErr error
	outcome := h.tel.Uploader.Flush(r.Context(), nil, func(err error) { flushErr = err })

	if flushErr != nil {
		NewResponseWriter(w, r).ExternalServiceError("collector", flushErr)
		return
	}
	WriteSuccess(w, r, FlushResponse{Outcome: outcome.String()})
}

// GameState returns the current puzzle.
func (h *Handler) GameState(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.game.Snapshot())
}

// GameTap forwards a tap to the game as live input.
func (h *Handler) GameTap(w http.ResponseWriter, r *http.Request) {
	var req TapRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if h.tel.Gate.Replaying() {
		NewResponseWriter(w, r).Conflict("Input is disabled while a replay is running")
		return
	}
	h.game.Tap(req.X, req.Y, req.Target)
	WriteSuccess(w, r, h.game.Snapshot())
}

// GameRetry presses the retry button.
func (h *Handler) GameRetry(w http.ResponseWriter, r *http.Request) {
	if h.tel.Gate.Replaying() {
		NewResponseWriter(w, r).Conflict("Input is disabled while a replay is running")
		return
	}
	h.game.Retry()
	WriteSuccess(w, r, h.game.Snapshot())
}

// StartReplay loads the recorded session in the body and starts replaying it.
// The run outlives the request.
func (h *Handler) StartReplay(w http.ResponseWriter, r *http.Request) {
	session, err := replay.Load(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		NewResponseWriter(w, r).ValidationError("Invalid recorded session", err.Error())
		return
	}

	ctx := logging.ContextWithCorrelationID(context.Background(), logging.CorrelationIDFromContext(r.Context()))
	if err := h.engine.Start(ctx, session); err != nil {
		rw := NewResponseWriter(w, r)
		switch {
		case errors.Is(err, replay.ErrAlreadyRunning):
			rw.Conflict("A replay is already running")
		case errors.Is(err, replay.ErrInvalidSession):
			rw.ValidationError("Invalid recorded session", err.Error())
		default:
			rw.InternalError("Failed to start replay")
		}
		return
	}
	NewResponseWriter(w, r).Accepted(h.engine.Progress())
}

// ReplayStatus reports progress and the run summary.
func (h *Handler) ReplayStatus(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"progress": h.engine.Progress(),
		"summary":  h.engine.Summary(),
	})
}

// StopReplay stops the current run and returns control to the player.
func (h *Handler) StopReplay(w http.ResponseWriter, r *http.Request) {
	h.engine.Stop()
	WriteSuccess(w, r, h.engine.Summary())
}

// Recording returns everything captured since start or the last reset.
func (h *Handler) Recording(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Recorder is not enabled")
		return
	}
	WriteSuccess(w, r, h.recorder.Session())
}

// ResetRecording discards the recording.
func (h *Handler) ResetRecording(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Recorder is not enabled")
		return
	}
	h.recorder.Reset()
	WriteSuccess(w, r, map[string]int{"behaviours": 0})
}

// WebSocket upgrades to the live feed.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}
	upgrader := h.upgrader()
	if err := ws.Upgrade(h.hub, &upgrader, w, r); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
	}
}

func (h *Handler) upgrader() gorillaws.Upgrader {
	return gorillaws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkOrigin accepts requests without an Origin (local tools) and browser
// origins in the CORS allow list.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.config == nil {
		return true
	}
	for _, allowed := range h.config.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// decodeAndValidate reads a JSON body into v and validates it, writing the
// error response itself when it returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		NewResponseWriter(w, r).BadRequest("Invalid JSON body")
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		apiErr := verr.ToAPIError()
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
