// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package models

import "time"

// Session is an ordered batch of behaviours plus device context. It is both
// the payload of POST /behaviour and the recorded-session file format.
//
// Events keep insertion order; replay timing is derived from it.
type Session struct {
	UserID         string        `json:"projectUserId,omitempty"`
	OwnerID        string        `json:"projectId,omitempty"`
	DeviceModel    string        `json:"deviceModel,omitempty"`
	Platform       string        `json:"platform,omitempty"`
	ViewportWidth  int           `json:"width"`
	ViewportHeight int           `json:"height"`
	Events         []EventRecord `json:"behaviours"`
}

// HasIdentity reports whether the session identifies its sender, either by
// an assigned user id or by the owner/device/platform triple.
func (s *Session) HasIdentity() bool {
	if s.UserID != "" {
		return true
	}
	return s.OwnerID != "" && s.DeviceModel != "" && s.Platform != ""
}

// Duration is the recorded span between the first and last event.
func (s *Session) Duration() time.Duration {
	if len(s.Events) < 2 {
		return 0
	}
	span := s.Events[len(s.Events)-1].Timestamp.Sub(s.Events[0].Timestamp)
	if span < 0 {
		return 0
	}
	return span
}

// EventResult is the per-behaviour acknowledgement in a collector response.
type EventResult struct {
	UserID  string `json:"projectUserId,omitempty"`
	EventID string `json:"behaviourId"`
	Success bool   `json:"success"`
}

// EventError pairs a rejected behaviour with the collector's reason.
type EventError struct {
	Event     EventRecord `json:"behaviour"`
	ErrorText string      `json:"error"`
}

// CollectorResponse is the body returned by POST /behaviour.
type CollectorResponse struct {
	Success         bool          `json:"success"`
	Message         string        `json:"message"`
	AssignedUserID  string        `json:"projectUserId,omitempty"`
	PerEventResults []EventResult `json:"results"`
	PerEventErrors  []EventError  `json:"errors"`
}
