// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/AnhPham/Zeta-Game-Analysis/internal/logging"
)

// SQLiteStore persists preferences in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	// WAL + busy timeout so a second process reading the file does not see "database is locked"
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db for prefs: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS prefs(
	  key   TEXT PRIMARY KEY,
	  value TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create prefs table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Warn().Err(err).Str("key", key).Msg("Failed to read preference")
		}
		return "", false
	}
	return value, true
}

func (s *SQLiteStore) GetString(key, def string) string {
	if v, ok := s.get(key); ok {
		return v
	}
	return def
}

func (s *SQLiteStore) SetString(key, value string) error {
	_, err := s.db.Exec(`
	INSERT INTO prefs(key, value) VALUES(?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("prefs: set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) GetInt(key string, def int) int {
	v, ok := s.get(key)
	if !ok {
		return def
	}
	return parseInt(v, def)
}

func (s *SQLiteStore) SetInt(key string, value int) error {
	return s.SetString(key, strconv.Itoa(value))
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
