package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/harvest/internal/ir"
)

var testTables = []Table{
	{Kind: "foodbank", Name: "foodbanks"},
	{Kind: "program", Name: "programs"},
	{Kind: "sponsor", Name: "sponsors"},
}

var testTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new on-disk SQLite store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a canonical record with one attribute.
func createTestRecord(kind, id, name string) ir.CanonicalRecord {
	return ir.CanonicalRecord{
		Kind:       kind,
		ID:         id,
		Name:       name,
		Attributes: map[string]any{"name": name, "about": "about " + id},
		IngestedAt: testTime,
	}
}

// createTestBatch creates a batch with n records of every test kind.
func createTestBatch(n int) *ir.Batch {
	b := ir.NewBatch([]string{"foodbank", "program", "sponsor"})
	for _, kind := range b.Kinds {
		for i := 0; i < n; i++ {
			id := kind + ":" + string(rune('a'+i))
			b.Add(createTestRecord(kind, id, "name "+id))
		}
	}
	return b
}

func commitOpts(runID string, truncate bool) CommitOptions {
	return CommitOptions{
		Tables:    testTables,
		Truncate:  truncate,
		RunID:     runID,
		StartedAt: testTime,
		Now:       func() time.Time { return testTime.Add(time.Minute) },
	}
}
