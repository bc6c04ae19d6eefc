// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

/*
Package collector is the transport to the remote behaviour collector.

Two endpoints are used:

	POST {base}/behaviour  JSON Session, bearer auth, returns CollectorResponse
	POST {base}/log        form-encoded log entry, bearer auth, body ignored

HTTPClient performs single exchanges with no retry loop. Retries happen at
the telemetry layer because unacknowledged events stay queued.
CircuitBreakerClient stops hammering an unavailable collector.
*/
package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
	"github.com/AnhPham/Zeta-Game-Analysis/internal/models"
)

var (
	// ErrTransport means no usable response reached the client.
	ErrTransport = errors.New("collector: request failed")

	// ErrParse means a response arrived but its body could not be decoded.
	ErrParse = errors.New("collector: error parsing response")

	// ErrCircuitOpen is joined with ErrTransport when the breaker rejects a call.
	ErrCircuitOpen = errors.New("collector: circuit open")
)

const (
	behaviourPath = "/behaviour"
	logPath       = "/log"
)

// maxErrorBodySize limits how much of a failed response is kept for diagnostics.
const maxErrorBodySize = 64 * 1024

// Client is the request/response contract the telemetry layer depends on.
type Client interface {
	PostBehaviours(ctx context.Context, session *models.Session) (*models.CollectorResponse, error)
	PostLog(ctx context.Context, entry LogEntry) error
}

// HTTPClient talks to the collector over HTTP.
//
// Thread Safety: safe for concurrent use.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient builds a client from the collector configuration.
func NewHTTPClient(cfg *config.CollectorConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// PostBehaviours sends one batch. A non-2xx status or network error is an
// ErrTransport; an undecodable body is an ErrParse. A decoded response with
// Success=false is returned without error for the caller to interpret.
func (c *HTTPClient) PostBehaviours(ctx context.Context, session *models.Session) (*models.CollectorResponse, error) {
	body, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("collector: encode session: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+behaviourPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := readBodyForError(resp.Body)
		return nil, fmt.Errorf("%w: %s (Status: %d)", ErrTransport, strings.TrimSpace(string(excerpt)), resp.StatusCode)
	}

	var result models.CollectorResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &result, nil
}

// PostLog forwards one log entry. Only the status is checked.
func (c *HTTPClient) PostLog(ctx context.Context, entry LogEntry) error {
	form := entry.Values()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+logPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: log rejected (Status: %d)", ErrTransport, resp.StatusCode)
	}
	return nil
}

// LogEntry is the form posted to /log.
type LogEntry struct {
	UserData    string
	LevelName   string
	IAP         string
	Project     string
	Type        string
	Condition   string
	Trace       string
	Version     string
	Platform    string
	DeviceModel string
	DeviceOS    string
	CreatedAt   time.Time
}

// Values encodes the entry using the collector's form field names.
func (e LogEntry) Values() url.Values {
	v := url.Values{}
	v.Set("userData", e.UserData)
	v.Set("levelName", e.LevelName)
	v.Set("iap", e.IAP)
	v.Set("project", e.Project)
	v.Set("type", e.Type)
	v.Set("condition", e.Condition)
	v.Set("trace", e.Trace)
	v.Set("version", e.Version)
	v.Set("platform", e.Platform)
	v.Set("deviceModel", e.DeviceModel)
	v.Set("deviceOS", e.DeviceOS)
	v.Set("createdAt", e.CreatedAt.UTC().Format(time.RFC3339Nano))
	return v
}

// readBodyForError reads at most maxErrorBodySize bytes of a failed response.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
