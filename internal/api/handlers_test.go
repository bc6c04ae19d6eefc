// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/clock"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/collector"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/game"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/prefs"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/recorder"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/replay"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/telemetry"
)

//nolint:gochecknoinits // quiet logs for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type stubCollector struct {
	mu  sync.Mutex
	err error
}

func (c *stubCollector) PostBehaviours(context.Context, *models.Session) (*models.CollectorResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return &models.CollectorResponse{Success: true, AssignedUserID: "user-9"}, nil
}

func (c *stubCollector) PostLog(context.Context, collector.LogEntry) error { return nil }

type testServer struct {
	tel       *telemetry.Telemetry
	game      *game.Controller
	engine    *replay.Engine
	recorder  *recorder.Recorder
	collector *stubCollector
	handler   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	vc := clock.NewVirtual(t0)
	cfg := &config.Config{
		Collector: config.CollectorConfig{ProjectID: "proj-1"},
		Telemetry: config.TelemetryConfig{BehaviourEnabled: true, Screen: "game", AppVersion: "1.0.0"},
		Server:    config.ServerConfig{CORSOrigins: []string{"*"}},
	}

	s := &testServer{collector: &stubCollector{}}
	s.tel = telemetry.New(cfg, s.collector, prefs.NewMemoryStore(), telemetry.WithClock(vc))
	s.game = game.New(s.tel, game.Config{Clock: vc})
	s.engine = replay.New(s.tel.Gate, s.game, replay.Config{Clock: vc})
	s.recorder = recorder.New(s.tel, cfg.Collector.ProjectID)

	h := NewHandler(Deps{
		Telemetry: s.tel,
		Game:      s.game,
		Engine:    s.engine,
		Recorder:  s.recorder,
		Config:    cfg,
	})
	s.handler = NewRouter(h, &cfg.Server).SetupChi()

	t.Cleanup(func() {
		s.engine.Stop()
		s.game.Close()
		s.tel.Wait()
	})
	return s
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var resp APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, resp
}

func dataMap(t *testing.T, resp APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %#v", resp.Data)
	}
	return m
}

func recordedSession(gap time.Duration) *models.Session {
	return &models.Session{
		UserID:         "user-1",
		ViewportWidth:  1080,
		ViewportHeight: 1920,
		Events: []models.EventRecord{
			models.NewEventRecord(models.KindLevelStarted, 1, "game", "", 0, 0, "1.0.0", t0),
			models.NewEventRecord(models.KindShapeSelected, 1, "game", "Cube", 270, 420, "1.0.0", t0.Add(gap)),
		},
	}
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t)
	rec, resp := s.do(t, http.MethodGet, "/healthz", nil)

	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("status = %d, success = %v", rec.Code, resp.Success)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("request id header missing")
	}
	if resp.Meta == nil || resp.Meta.RequestID == "" {
		t.Error("request id missing from meta")
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)
	_, resp := s.do(t, http.MethodGet, "/api/v1/status", nil)

	data := dataMap(t, resp)
	if data["gate"] != "capturing" {
		t.Errorf("gate = %v", data["gate"])
	}
	replayState, _ := data["replay"].(map[string]interface{})
	if replayState["state"] != "idle" {
		t.Errorf("replay = %v", data["replay"])
	}
}

func TestCaptureEvent(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name:       "valid",
			body:       CaptureRequest{Kind: models.KindButtonClicked, Level: 2, ObjectID: "settings", X: 5, Y: 6},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown kind",
			body:       CaptureRequest{Kind: "jumped", Level: 2},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidationFailed,
		},
		{
			name:       "malformed",
			body:       "{",
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec, resp := s.do(t, http.MethodPost, "/api/v1/events", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if resp.Error == nil || resp.Error.Code != tt.wantCode {
					t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
				}
				return
			}

			if dataMap(t, resp)["captured"] != true {
				t.Error("captured = false")
			}
			pending := s.tel.Queue.Pending()
			if len(pending) != 1 {
				t.Fatalf("pending = %d", len(pending))
			}
			got := pending[0]
			if got.Screen != "game" || got.X != 5 || got.Y != 6 || got.ObjectID != "settings" {
				t.Errorf("record = %+v", got)
			}
		})
	}
}

func TestFlush(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s := newTestServer(t)
		s.tel.Tracker.Add(models.KindMissClicked, 1, "game", "")

		rec, resp := s.do(t, http.MethodPost, "/api/v1/flush", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if dataMap(t, resp)["outcome"] != "succeeded" {
			t.Errorf("data = %v", resp.Data)
		}
		if s.tel.UserID() != "user-9" {
			t.Errorf("UserID = %q", s.tel.UserID())
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		s := newTestServer(t)
		s.collector.err = collector.ErrTransport
		s.tel.Tracker.Add(models.KindMissClicked, 1, "game", "")

		rec, resp := s.do(t, http.MethodPost, "/api/v1/flush", nil)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d", rec.Code)
		}
		if resp.Error == nil || resp.Error.Code != ErrCodeExternalServiceFail {
			t.Errorf("error = %+v", resp.Error)
		}
		if s.tel.Queue.Stats().Active != 1 {
			t.Error("failed flush should keep the event")
		}
	})
}

func TestGameEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.game.ResetToResumeLevel()

	rec, resp := s.do(t, http.MethodGet, "/api/v1/game", nil)
	if rec.Code != http.StatusOK || dataMap(t, resp)["level"] != float64(1) {
		t.Fatalf("game = %d %v", rec.Code, resp.Data)
	}

	before := len(s.tel.Queue.Pending())
	rec, _ = s.do(t, http.MethodPost, "/api/v1/game/tap", TapRequest{X: 10, Y: 10})
	if rec.Code != http.StatusOK {
		t.Fatalf("tap status = %d", rec.Code)
	}
	pending := s.tel.Queue.Pending()
	if len(pending) != before+1 || pending[len(pending)-1].Kind != models.KindMissClicked {
		t.Errorf("tap did not record a miss: %+v", pending)
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/game/tap", TapRequest{Target: "Pyramid"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown target status = %d", rec.Code)
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/game/retry", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("retry status = %d", rec.Code)
	}
}

func TestReplayLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodPost, "/api/v1/replay", recordedSession(time.Hour))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d (%s)", rec.Code, rec.Body.String())
	}
	if dataMap(t, resp)["state"] != "running" {
		t.Errorf("progress = %v", resp.Data)
	}
	if !s.tel.Gate.Replaying() {
		t.Fatal("gate not replaying")
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/replay", recordedSession(time.Hour))
	if rec.Code != http.StatusConflict {
		t.Errorf("second start status = %d", rec.Code)
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/game/tap", TapRequest{X: 1, Y: 1})
	if rec.Code != http.StatusConflict {
		t.Errorf("tap during replay status = %d", rec.Code)
	}

	_, resp = s.do(t, http.MethodGet, "/api/v1/replay", nil)
	progress, _ := dataMap(t, resp)["progress"].(map[string]interface{})
	if progress["state"] != "running" {
		t.Errorf("progress = %v", progress)
	}

	rec, resp = s.do(t, http.MethodDelete, "/api/v1/replay", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
	if dataMap(t, resp)["state"] != "stopped" {
		t.Errorf("summary = %v", resp.Data)
	}
	if s.tel.Gate.Replaying() {
		t.Error("gate still replaying after stop")
	}
}

func TestReplayRejectsInvalidSession(t *testing.T) {
	s := newTestServer(t)
	rec, resp := s.do(t, http.MethodPost, "/api/v1/replay", `{"behaviours":[]}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error = %+v", resp.Error)
	}
	if s.tel.Gate.Replaying() {
		t.Error("gate changed for invalid session")
	}
}

func TestRecording(t *testing.T) {
	s := newTestServer(t)
	s.recorder.Record(models.NewEventRecord(models.KindMissClicked, 1, "game", "", 1, 2, "1.0.0", t0))

	_, resp := s.do(t, http.MethodGet, "/api/v1/recording", nil)
	events, _ := dataMap(t, resp)["behaviours"].([]interface{})
	if len(events) != 1 {
		t.Errorf("behaviours = %v", dataMap(t, resp)["behaviours"])
	}

	rec, _ := s.do(t, http.MethodDelete, "/api/v1/recording", nil)
	if rec.Code != http.StatusOK || s.recorder.Len() != 0 {
		t.Errorf("reset status = %d, len = %d", rec.Code, s.recorder.Len())
	}
}

func TestRecordingDisabled(t *testing.T) {
	h := NewHandler(Deps{})
	rec := httptest.NewRecorder()
	h.Recording(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recording", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestNotFoundAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodGet, "/nope", nil)
	if rec.Code != http.StatusNotFound || resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("not found = %d %+v", rec.Code, resp.Error)
	}

	s.do(t, http.MethodGet, "/api/v1/status", nil)
	rec, _ = s.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "zeta_api_requests_total") {
		t.Error("metrics endpoint missing API metrics")
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t)
	h := NewHandler(Deps{Telemetry: s.tel, Game: s.game, Engine: s.engine})
	handler := NewRouter(h, &config.ServerConfig{RateLimitReqs: 1, RateLimitWindow: time.Minute}).SetupChi()

	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}
