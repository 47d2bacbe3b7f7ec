package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/harvest/internal/ir"
)

// CommitOptions controls one snapshot commit.
type CommitOptions struct {
	// Tables lists every kind's table. Commit ensures and (when truncating)
	// empties all of them, even kinds with no records in the batch.
	Tables []Table

	// Truncate replaces the previous snapshot instead of upserting into it.
	Truncate bool

	// Simulate skips the database entirely and reports success.
	Simulate bool

	// RunID and StartedAt identify the run in the ledger.
	RunID     string
	StartedAt time.Time

	// Now stamps the ledger row. Nil means time.Now.
	Now func() time.Time
}

// Report describes a finished commit.
type Report struct {
	RunID     string         `json:"run_id"`
	Simulated bool           `json:"simulated"`
	Truncated bool           `json:"truncated"`
	Written   map[string]int `json:"written"`
}

// Commit writes batch as one atomic unit:
//
//	BEGIN -> ensure schema -> [truncate all] -> upsert per kind -> ledger row -> COMMIT
//
// Any failure rolls back and returns a *PersistenceError naming the step and,
// for inserts, the kind. Nothing is written in that case.
//
// With Simulate set, Commit returns before touching the store (s may be nil)
// and the report lists what would have been written.
func Commit(ctx context.Context, s *Store, batch *ir.Batch, opts CommitOptions) (*Report, error) {
	report := &Report{
		RunID:     opts.RunID,
		Simulated: opts.Simulate,
		Truncated: opts.Truncate && !opts.Simulate,
		Written:   batch.Counts(),
	}
	if opts.Simulate {
		return report, nil
	}
	if s == nil || s.db == nil {
		return nil, &PersistenceError{Step: StepBegin, Err: errors.New("no store")}
	}

	tables := make(map[string]string, len(opts.Tables))
	names := make([]string, 0, len(opts.Tables))
	for _, t := range opts.Tables {
		tables[t.Kind] = t.Name
		names = append(names, t.Name)
	}
	for _, kind := range batch.Kinds {
		if _, ok := tables[kind]; !ok {
			return nil, &PersistenceError{Step: StepInsert, Kind: kind, Err: errors.New("no table for kind")}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &PersistenceError{Step: StepBegin, Err: err}
	}
	// No-op after a successful Commit.
	defer tx.Rollback()

	if err := ensureSchema(ctx, tx, s.dialect, opts.Tables); err != nil {
		return nil, &PersistenceError{Step: StepEnsureSchema, Err: err}
	}

	if opts.Truncate {
		for _, stmt := range s.dialect.truncate(names) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return nil, &PersistenceError{Step: StepTruncate, Err: err}
			}
		}
	}

	for _, kind := range batch.Kinds {
		if err := s.insertKind(ctx, tx, tables[kind], kind, batch.Records[kind]); err != nil {
			return nil, &PersistenceError{Step: StepInsert, Kind: kind, Err: err}
		}
	}

	if err := s.writeRun(ctx, tx, batch, opts); err != nil {
		return nil, &PersistenceError{Step: StepLedger, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &PersistenceError{Step: StepCommit, Err: err}
	}
	return report, nil
}

// insertKind upserts one kind's records with a single prepared statement.
func (s *Store) insertKind(ctx context.Context, tx *sql.Tx, table, kind string, records []ir.CanonicalRecord) error {
	if s.insertHook != nil {
		if err := s.insertHook(kind); err != nil {
			return err
		}
	}
	if len(records) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.upsert(table))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.ID == "" {
			return errors.New("record without identifier")
		}
		data, err := marshalData(rec.Attributes)
		if err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
		var name any
		if rec.Name != "" {
			name = rec.Name
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, name, data, rec.IngestedAt.UTC()); err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (s *Store) writeRun(ctx context.Context, tx *sql.Tx, batch *ir.Batch, opts CommitOptions) error {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	started := opts.StartedAt
	if started.IsZero() {
		started = now()
	}
	runID := opts.RunID
	if runID == "" {
		return errors.New("missing run id")
	}

	counts, err := marshalCounts(batch.Counts())
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.dialect.insertRun(),
		runID,
		started.UTC(),
		now().UTC(),
		s.dialect.boolValue(opts.Truncate),
		counts,
		ir.PipelineVersion,
	)
	return err
}
