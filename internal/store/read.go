package store

import (
	"context"
	"fmt"
	"time"
)

// Row is one persisted canonical record.
type Row struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// Run is one ledger entry.
type Run struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Truncated       bool      `json:"truncated"`
	Counts          string    `json:"counts"`
	PipelineVersion string    `json:"pipeline_version"`
}

// CountRows returns the number of rows in table.
func (s *Store) CountRows(ctx context.Context, table string) (int, error) {
	if !validIdent(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// ReadAll returns every row of table ordered by id.
//
// Returns an empty slice (not nil) for an empty table.
func (s *Store) ReadAll(ctx context.Context, table string) ([]Row, error) {
	if !validIdent(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, data, created_at FROM "+table+" ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var (
			r    Row
			name *string
			data []byte
		)
		if err := rows.Scan(&r.ID, &name, &data, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		if name != nil {
			r.Name = *name
		}
		if r.Data, err = unmarshalData(data); err != nil {
			return nil, fmt.Errorf("row %s: %w", r.ID, err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

// Runs returns the ledger, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, truncated, counts, pipeline_version
		FROM `+RunsTable+`
		ORDER BY started_at ASC, run_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		var (
			r      Run
			counts []byte
		)
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Truncated, &counts, &r.PipelineVersion); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Counts = string(counts)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}
