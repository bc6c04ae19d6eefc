// Zeta Game Analysis - Behaviour Telemetry and Session Replay
// Copyright 2026 Anh Pham
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/AnhPham/Zeta-Game-Analysis

package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/AnhPham/Zeta-Game-Analysis/internal/config"
)

func createTestBadgerDB(t *testing.T) *badger.DB {
	t.Helper()
	dir, err := os.MkdirTemp("", "prefs-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.RemoveAll(dir)
	})
	return db
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	if got := s.GetString(KeyUserID, ""); got != "" {
		t.Errorf("GetString(missing) = %q, want empty", got)
	}
	if got := s.GetInt(KeyLevel, 1); got != 1 {
		t.Errorf("GetInt(missing) = %d, want 1", got)
	}

	if err := s.SetString(KeyUserID, "user-7"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := s.SetInt(KeyLevel, 12); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if got := s.GetString(KeyUserID, ""); got != "user-7" {
		t.Errorf("GetString = %q, want user-7", got)
	}
	if got := s.GetInt(KeyLevel, 1); got != 12 {
		t.Errorf("GetInt = %d, want 12", got)
	}

	// Non-numeric values fall back to the default.
	if err := s.SetString(KeyLevel, "twelve"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if got := s.GetInt(KeyLevel, 3); got != 3 {
		t.Errorf("GetInt(non-numeric) = %d, want 3", got)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemoryStore())
}

func TestBadgerStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewBadgerStoreFromDB(createTestBadgerDB(t)))
}

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := OpenBadger(dir)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	if err := s.SetString(KeyUserID, "persisted"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = OpenBadger(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got := s.GetString(KeyUserID, ""); got != "persisted" {
		t.Errorf("after reopen GetString = %q, want persisted", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "prefs.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.SetInt(KeyLevel, 9); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := s.SetInt(KeyLevel, 10); err != nil {
		t.Fatalf("SetInt overwrite: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got := s.GetInt(KeyLevel, 1); got != 10 {
		t.Errorf("after reopen GetInt = %d, want 10", got)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     config.PrefsConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.PrefsConfig{Backend: config.PrefsBackendMemory}},
		{name: "empty defaults to memory", cfg: config.PrefsConfig{}},
		{name: "badger", cfg: config.PrefsConfig{Backend: config.PrefsBackendBadger, Path: t.TempDir()}},
		{name: "sqlite", cfg: config.PrefsConfig{Backend: config.PrefsBackendSQLite, Path: filepath.Join(t.TempDir(), "prefs.db")}},
		{name: "unknown", cfg: config.PrefsConfig{Backend: "redis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer s.Close()
			if err := s.SetInt(KeyLevel, 4); err != nil {
				t.Fatalf("SetInt: %v", err)
			}
		})
	}
}
