package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/harvest/internal/metrics"
	"github.com/roach88/harvest/internal/normalize"
	"github.com/roach88/harvest/internal/runner"
	"github.com/roach88/harvest/internal/schema"
	"github.com/roach88/harvest/internal/store"
	"github.com/roach88/harvest/internal/unit"
)

// Options configures one Run. Zero values select defaults.
type Options struct {
	// Schema declares the kinds. Nil means schema.Default().
	Schema *schema.Schema

	// BaseDir and Manifest locate the unit manifest.
	BaseDir  string
	Manifest string

	// Catalog resolves builtin units. Nil means unit.Builtins.
	Catalog *unit.Catalog

	// Workers and Timeout size the pool and the per-unit deadline.
	Workers int
	Timeout time.Duration

	// Truncate replaces the previous snapshot. Simulate skips the store.
	Truncate bool
	Simulate bool

	// Store receives the snapshot. It may be nil only when Simulate is set.
	Store *store.Store

	// Metrics observes units and the run. Optional.
	Metrics *metrics.Collector

	// MetricsFile is written after the run when Metrics is set.
	MetricsFile string

	// ScriptOutput receives what script units print. Nil means os.Stderr.
	ScriptOutput io.Writer

	Logger *slog.Logger
	Now    func() time.Time
	RunIDs RunIDGenerator
}

func (o *Options) defaults() error {
	if o.Schema == nil {
		s, err := schema.Default()
		if err != nil {
			return err
		}
		o.Schema = s
	}
	if o.Catalog == nil {
		o.Catalog = unit.Builtins
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.RunIDs == nil {
		o.RunIDs = UUIDv7Generator{}
	}
	return nil
}

// Run executes one ingestion run and returns its summary.
//
// A missing manifest, units that fail to load, time out, error or panic, and
// malformed output never fail the run. The returned error is set only when
// the batch could not be built or persisted; the summary is still returned
// so callers can report what was collected.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	log := opts.Logger

	sum := &Summary{
		RunID:     opts.RunIDs.Generate(),
		StartedAt: opts.Now().UTC(),
		Simulated: opts.Simulate,
	}
	log = log.With("run_id", sum.RunID)
	log.Info("run starting", "manifest", opts.Manifest, "simulate", opts.Simulate, "truncate", opts.Truncate)

	reg := &unit.Registry{BaseDir: opts.BaseDir, Catalog: opts.Catalog, Logger: log}
	locs, err := reg.Read(opts.Manifest)
	if err != nil {
		log.Warn("manifest unavailable, running with zero units", "error", err)
	}

	runOpts := []runner.Option{
		runner.WithWorkers(opts.Workers),
		runner.WithTimeout(opts.Timeout),
		runner.WithLogger(log),
	}
	if opts.Metrics != nil {
		runOpts = append(runOpts, runner.WithObserver(opts.Metrics))
	}
	loader := &unit.Loader{Catalog: opts.Catalog, Stdout: opts.ScriptOutput}
	result := runner.New(loader, runOpts...).Run(ctx, locs)

	sum.Units = summarizeUnits(result.Units)
	sum.UnitStatus = result.StatusCounts()
	sum.Collected = len(result.Records)
	sum.Dropped = result.Dropped()

	norm := normalize.NewNormalizer(opts.Schema, opts.Now, log)
	batch, stats, err := norm.Normalize(result.Records)
	if err != nil {
		sum.FinishedAt = opts.Now().UTC()
		return sum, fmt.Errorf("normalize: %w", err)
	}
	sum.Unclassified = stats.Unclassified
	sum.Duplicates = stats.Duplicates
	sum.Collisions = stats.Collisions

	report, err := store.Commit(ctx, opts.Store, batch, store.CommitOptions{
		Tables:    store.TablesFor(opts.Schema),
		Truncate:  opts.Truncate,
		Simulate:  opts.Simulate,
		RunID:     sum.RunID,
		StartedAt: sum.StartedAt,
		Now:       opts.Now,
	})
	sum.FinishedAt = opts.Now().UTC()
	committed := err == nil && !opts.Simulate
	if err == nil {
		sum.Persisted = report.Written
		sum.Truncated = report.Truncated
	}

	opts.finishMetrics(log, sum, committed)

	if err != nil {
		log.Error("run failed", "error", err)
		return sum, err
	}
	log.Info("run finished",
		"units", len(sum.Units),
		"persisted", sum.TotalPersisted(),
		"dropped", sum.Dropped,
		"duplicates", sum.Duplicates,
		"unclassified", sum.Unclassified,
		"duration", sum.Duration())
	return sum, nil
}

// finishMetrics records the run and writes the textfile. A failed write is
// logged; metrics never fail a run.
func (o *Options) finishMetrics(log *slog.Logger, sum *Summary, committed bool) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.RunFinished(sum.Duration(), sum.Persisted, committed, sum.FinishedAt)
	if o.MetricsFile == "" {
		return
	}
	if err := o.Metrics.WriteFile(o.MetricsFile); err != nil {
		log.Warn("metrics not written", "file", o.MetricsFile, "error", err)
	}
}
