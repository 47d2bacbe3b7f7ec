package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Driver() != DriverSQLite {
		t.Errorf("Driver() = %q, want %q", s.Driver(), DriverSQLite)
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	pragmas := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, want := range pragmas {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")

	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PersistenceError, got %T: %v", err, err)
	}
	if pe.Step != StepOpen {
		t.Errorf("Step = %q, want %q", pe.Step, StepOpen)
	}
}

func TestOpen_BadPath(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))

	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PersistenceError, got %T: %v", err, err)
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.EnsureSchema(ctx, testTables); err != nil {
			t.Fatalf("EnsureSchema() iteration %d failed: %v", i, err)
		}
	}

	for _, table := range []string{"foodbanks", "programs", "sponsors", RunsTable} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestEnsureSchema_RejectsBadTableName(t *testing.T) {
	s := createTestStore(t)

	err := s.EnsureSchema(context.Background(), []Table{{Kind: "x", Name: "x; DROP TABLE y"}})
	if err == nil {
		t.Fatal("expected error for invalid table name")
	}
}

func TestClose_NilSafe(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil store: %v", err)
	}
}
