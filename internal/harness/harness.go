package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/roach88/harvest/internal/ingest"
	"github.com/roach88/harvest/internal/ir"
	"github.com/roach88/harvest/internal/normalize"
	"github.com/roach88/harvest/internal/schema"
	"github.com/roach88/harvest/internal/store"
	"github.com/roach88/harvest/internal/testutil"
	"github.com/roach88/harvest/internal/unit"
)

// SeedRunID is the ledger id of the snapshot written from Scenario.Seed.
const SeedRunID = "seed"

// Harness is the scenario execution environment.
// It runs scenarios with a fixed clock and run id in a private directory.
type Harness struct {
	dir    string
	schema *schema.Schema
	store  *store.Store
	clock  *testutil.FixedClock
	logger *slog.Logger
}

// Option configures Run.
type Option func(*Harness)

// WithLogger routes pipeline logs to l. By default they are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh temporary directory holding its manifest,
// script units and SQLite database. The returned error is set only when the
// scenario could not be set up; pipeline failures show up as ExitCode 1 and
// are judged against the expect block.
//
// Execution flow:
// 1. Register stub units and write the manifest
// 2. Open the store and commit the seed snapshot
// 3. Run the pipeline
// 4. Snapshot the persisted rows
// 5. Check the expect block and assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	s, err := schema.Default()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "harvest-scenario-")
	if err != nil {
		return nil, fmt.Errorf("create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	h := &Harness{
		dir:    dir,
		schema: s,
		clock:  testutil.NewFixedClock(time.Time{}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	cat, err := h.writeUnits(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.OpenSQLite(filepath.Join(dir, "harvest.db"))
	if err != nil {
		return nil, fmt.Errorf("open scenario store: %w", err)
	}
	defer st.Close()
	h.store = st

	if err := h.seed(ctx, scenario.Seed); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	if scenario.FailStore {
		st.Close()
	}

	timeout := scenario.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	truncate := scenario.Truncate == nil || *scenario.Truncate

	runIDs := testutil.NewFixedRunIDGenerator()
	if scenario.RunID != "" {
		runIDs = testutil.NewFixedRunIDGenerator(scenario.RunID)
	}

	result := NewResult()
	sum, runErr := ingest.Run(ctx, ingest.Options{
		Schema:       s,
		BaseDir:      dir,
		Manifest:     unit.DefaultManifestName,
		Catalog:      cat,
		Workers:      scenario.Workers,
		Timeout:      timeout,
		Truncate:     truncate,
		Simulate:     scenario.Simulate,
		Store:        st,
		ScriptOutput: io.Discard,
		Logger:       h.logger,
		Now:          h.clock.Now,
		RunIDs:       runIDs,
	})
	result.Summary = sum
	if runErr != nil {
		result.ExitCode = 1
		h.logger.Info("scenario run failed", "scenario", scenario.Name, "error", runErr)
	}

	if !scenario.FailStore {
		if err := h.snapshotRows(ctx, result); err != nil {
			return nil, err
		}
	}

	for _, msg := range checkExpect(scenario.Expect, result) {
		result.AddError(msg)
	}
	actx := &AssertionContext{Store: st, Ctx: ctx}
	if scenario.FailStore {
		actx.Store = nil
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// writeUnits registers builtin stubs, writes script units and the manifest.
func (h *Harness) writeUnits(scenario *Scenario) (*unit.Catalog, error) {
	cat := unit.NewCatalog()
	lines := make([]string, 0, len(scenario.Units)+len(scenario.ManifestExtra))

	for _, u := range scenario.Units {
		if u.Script != "" {
			src := u.Script
			if !strings.HasPrefix(strings.TrimSpace(src), "package ") {
				src = "package main\n\n" + src
			}
			name := u.Name + unit.ScriptExt
			if err := os.WriteFile(filepath.Join(h.dir, name), []byte(src), 0o644); err != nil {
				return nil, fmt.Errorf("write script unit %s: %w", u.Name, err)
			}
			lines = append(lines, name)
			continue
		}

		var err error
		if u.Deferred {
			err = cat.RegisterAsync(u.Name, deferredStub(u))
		} else {
			err = cat.Register(u.Name, stub(u))
		}
		if err != nil {
			return nil, err
		}
		lines = append(lines, unit.BuiltinPrefix+u.Name)
	}
	lines = append(lines, scenario.ManifestExtra...)

	manifest := filepath.Join(h.dir, unit.DefaultManifestName)
	if err := os.WriteFile(manifest, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return cat, nil
}

// stub builds the direct-shape entry point for u.
func stub(u UnitSpec) unit.CallFunc {
	switch {
	case u.Records != nil:
		return func(context.Context) (any, error) { return u.Records, nil }
	case u.Output != nil:
		return func(context.Context) (any, error) { return u.Output, nil }
	case u.Error != "":
		return func(context.Context) (any, error) { return nil, errors.New(u.Error) }
	case u.Panic != "":
		return func(context.Context) (any, error) { panic(u.Panic) }
	default:
		return func(ctx context.Context) (any, error) {
			if u.IgnoreContext {
				time.Sleep(u.Sleep)
				return []any{}, nil
			}
			t := time.NewTimer(u.Sleep)
			defer t.Stop()
			select {
			case <-t.C:
				return []any{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}

// deferredStub delivers the stub's output through a channel.
func deferredStub(u UnitSpec) unit.AsyncFunc {
	call := stub(u)
	return func(ctx context.Context) <-chan unit.Result {
		ch := make(chan unit.Result, 1)
		go func() {
			v, err := call(ctx)
			ch <- unit.Result{Value: v, Err: err}
		}()
		return ch
	}
}

// seed commits records as the previous snapshot.
func (h *Harness) seed(ctx context.Context, seed []map[string]any) error {
	if len(seed) == 0 {
		return nil
	}

	records := make([]ir.Record, 0, len(seed))
	for i, raw := range seed {
		rec, err := ir.ToRecord(raw)
		if err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
		records = append(records, rec)
	}

	batch, _, err := normalize.NewNormalizer(h.schema, h.clock.Now, h.logger).Normalize(records)
	if err != nil {
		return err
	}
	_, err = store.Commit(ctx, h.store, batch, store.CommitOptions{
		Tables:    store.TablesFor(h.schema),
		Truncate:  true,
		RunID:     SeedRunID,
		StartedAt: h.clock.Now(),
		Now:       h.clock.Now,
	})
	return err
}

// snapshotRows reads every kind table into result.Rows.
func (h *Harness) snapshotRows(ctx context.Context, result *Result) error {
	for _, t := range store.TablesFor(h.schema) {
		rows, err := h.store.ReadAll(ctx, t.Name)
		if err != nil {
			// A table that was never created holds no rows.
			if isMissingTable(err) {
				result.Rows[t.Name] = []RowSnapshot{}
				continue
			}
			return fmt.Errorf("read %s: %w", t.Name, err)
		}
		snap := make([]RowSnapshot, len(rows))
		for i, r := range rows {
			snap[i] = RowSnapshot{ID: r.ID, Name: r.Name}
		}
		result.Rows[t.Name] = snap
	}
	return nil
}

func isMissingTable(err error) bool {
	return strings.Contains(err.Error(), "no such table")
}

// checkExpect compares the expect block with the run outcome.
func checkExpect(e Expect, r *Result) []string {
	var errs []string
	if r.ExitCode != e.ExitCode {
		errs = append(errs, fmt.Sprintf("exit code: expected %d, got %d", e.ExitCode, r.ExitCode))
	}

	sum := r.Summary
	if sum == nil {
		return append(errs, "no run summary")
	}

	for _, kind := range sortedKeys(e.Persisted) {
		if got := sum.Persisted[kind]; got != e.Persisted[kind] {
			errs = append(errs, fmt.Sprintf("persisted %s: expected %d, got %d", kind, e.Persisted[kind], got))
		}
	}
	for _, status := range sortedKeys(e.Units) {
		got := 0
		for st, n := range sum.UnitStatus {
			if string(st) == status {
				got = n
			}
		}
		if got != e.Units[status] {
			errs = append(errs, fmt.Sprintf("units %s: expected %d, got %d", status, e.Units[status], got))
		}
	}

	counts := []struct {
		name     string
		expected *int
		actual   int
	}{
		{"dropped", e.Dropped, sum.Dropped},
		{"duplicates", e.Duplicates, sum.Duplicates},
		{"unclassified", e.Unclassified, sum.Unclassified},
		{"identity_collisions", e.Collisions, sum.Collisions},
	}
	for _, c := range counts {
		if c.expected != nil && *c.expected != c.actual {
			errs = append(errs, fmt.Sprintf("%s: expected %d, got %d", c.name, *c.expected, c.actual))
		}
	}
	return errs
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
