package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/harvest/internal/ir"
)

func countAll(t *testing.T, s *Store) map[string]int {
	t.Helper()
	out := map[string]int{}
	for _, tbl := range testTables {
		n, err := s.CountRows(context.Background(), tbl.Name)
		require.NoError(t, err)
		out[tbl.Name] = n
	}
	return out
}

func TestCommit_WritesEveryKind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	report, err := Commit(ctx, s, createTestBatch(2), commitOpts("run-1", true))
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.True(t, report.Truncated)
	assert.False(t, report.Simulated)
	assert.Equal(t, map[string]int{"foodbank": 2, "program": 2, "sponsor": 2}, report.Written)
	assert.Equal(t, map[string]int{"foodbanks": 2, "programs": 2, "sponsors": 2}, countAll(t, s))

	rows, err := s.ReadAll(ctx, "foodbanks")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "foodbank:a", rows[0].ID)
	assert.Equal(t, "name foodbank:a", rows[0].Name)
	assert.Equal(t, map[string]any{"name": "name foodbank:a", "about": "about foodbank:a"}, rows[0].Data)
	assert.True(t, testTime.Equal(rows[0].CreatedAt))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.True(t, runs[0].Truncated)
	assert.Equal(t, `{"foodbank":2,"program":2,"sponsor":2}`, runs[0].Counts)
	assert.Equal(t, ir.PipelineVersion, runs[0].PipelineVersion)
}

func TestCommit_TruncateReplacesSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := Commit(ctx, s, createTestBatch(3), commitOpts("run-1", true))
	require.NoError(t, err)

	next := ir.NewBatch([]string{"foodbank", "program", "sponsor"})
	next.Add(createTestRecord("program", "program:z", "Z"))
	_, err = Commit(ctx, s, next, commitOpts("run-2", true))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"foodbanks": 0, "programs": 1, "sponsors": 0}, countAll(t, s))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2, "truncation never touches the ledger")
}

func TestCommit_AppendIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := Commit(ctx, s, createTestBatch(2), commitOpts("run-1", false))
	require.NoError(t, err)
	before, err := s.ReadAll(ctx, "sponsors")
	require.NoError(t, err)

	_, err = Commit(ctx, s, createTestBatch(2), commitOpts("run-2", false))
	require.NoError(t, err)
	after, err := s.ReadAll(ctx, "sponsors")
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Equal(t, map[string]int{"foodbanks": 2, "programs": 2, "sponsors": 2}, countAll(t, s))
}

func TestCommit_UpsertUpdatesExistingRow(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := ir.NewBatch([]string{"foodbank"})
	first.Add(createTestRecord("foodbank", "foodbank:x42", "Old"))
	_, err := Commit(ctx, s, first, commitOpts("run-1", false))
	require.NoError(t, err)

	second := ir.NewBatch([]string{"foodbank"})
	second.Add(createTestRecord("foodbank", "foodbank:x42", "New"))
	_, err = Commit(ctx, s, second, commitOpts("run-2", false))
	require.NoError(t, err)

	rows, err := s.ReadAll(ctx, "foodbanks")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "New", rows[0].Name)
}

// TestCommit_ThirdBucketFailureRollsBack injects a failure into the last
// kind's inserts and checks that every table is left as it was.
func TestCommit_ThirdBucketFailureRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := Commit(ctx, s, createTestBatch(1), commitOpts("run-1", true))
	require.NoError(t, err)
	before := countAll(t, s)

	injected := errors.New("disk full")
	s.insertHook = func(kind string) error {
		if kind == "sponsor" {
			return injected
		}
		return nil
	}

	_, err = Commit(ctx, s, createTestBatch(4), commitOpts("run-2", true))

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, StepInsert, pe.Step)
	assert.Equal(t, "sponsor", pe.Kind)
	assert.ErrorIs(t, err, injected)

	assert.Equal(t, before, countAll(t, s), "truncate and earlier inserts must be rolled back")
	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestCommit_FailureOnFreshDatabaseLeavesNoTables(t *testing.T) {
	s := createTestStore(t)
	s.insertHook = func(kind string) error { return errors.New("boom") }

	_, err := Commit(context.Background(), s, createTestBatch(1), commitOpts("run-1", true))
	require.Error(t, err)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&n))
	assert.Zero(t, n, "schema creation is part of the rolled back transaction")
}

func TestCommit_Simulate(t *testing.T) {
	opts := commitOpts("dry", true)
	opts.Simulate = true

	report, err := Commit(context.Background(), nil, createTestBatch(2), opts)
	require.NoError(t, err)
	assert.True(t, report.Simulated)
	assert.False(t, report.Truncated)
	assert.Equal(t, 6, report.Written["foodbank"]+report.Written["program"]+report.Written["sponsor"])
}

func TestCommit_SimulateWritesNothing(t *testing.T) {
	s := createTestStore(t)
	opts := commitOpts("dry", true)
	opts.Simulate = true

	_, err := Commit(context.Background(), s, createTestBatch(2), opts)
	require.NoError(t, err)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&n))
	assert.Zero(t, n)
}

func TestCommit_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Commit(ctx, nil, createTestBatch(1), commitOpts("r", true))
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, StepBegin, pe.Step)

	s := createTestStore(t)
	opts := commitOpts("r", true)
	opts.Tables = testTables[:1]
	_, err = Commit(ctx, s, createTestBatch(1), opts)
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "program", pe.Kind)

	empty := ir.NewBatch([]string{"foodbank"})
	empty.Add(ir.CanonicalRecord{Kind: "foodbank", IngestedAt: testTime})
	_, err = Commit(ctx, s, empty, commitOpts("r2", true))
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, StepInsert, pe.Step)

	_, err = Commit(ctx, s, createTestBatch(1), commitOpts("", true))
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, StepLedger, pe.Step)
}

func TestCommit_CanceledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Commit(ctx, s, createTestBatch(1), commitOpts("r", true))
	var pe *PersistenceError
	assert.True(t, errors.As(err, &pe))
}
