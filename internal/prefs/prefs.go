// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

// Package prefs persists small pieces of process state between runs.
//
// Each key has a single owner:
//
//	KeyUserID    written by the uploader once the collector assigns an id
//	KeyLevel     written by the game while capturing
//	KeyUserData  read by the log forwarder
package prefs

import (
	"fmt"
	"strconv"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
)

// Well-known keys.
const (
	KeyUserID   = "ZETA_PROJECT_USER_ID"
	KeyLevel    = "LEVEL"
	KeyUserData = "USER_DATA"
)

// Store is a string/int key-value store. Missing keys yield the default.
type Store interface {
	GetString(key, def string) string
	SetString(key, value string) error
	GetInt(key string, def int) int
	SetInt(key string, value int) error
	Close() error
}

// Open returns the store selected by cfg.
func Open(cfg *config.PrefsConfig) (Store, error) {
	switch cfg.Backend {
	case config.PrefsBackendBadger:
		s, err := OpenBadger(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.PrefsBackendSQLite:
		s, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.PrefsBackendMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("prefs: unknown backend %q", cfg.Backend)
	}
}

func parseInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
