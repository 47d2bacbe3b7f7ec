package runner

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/harvest/internal/ir"
	"github.com/roach88/harvest/internal/unit"
)

// MinWorkers is the floor of the default pool size.
const MinWorkers = 8

// DefaultWorkers returns max(runtime.NumCPU(), MinWorkers).
func DefaultWorkers() int {
	return max(runtime.NumCPU(), MinWorkers)
}

// Loader turns a manifest location into a runnable unit.
// Implemented by *unit.Loader.
type Loader interface {
	Load(loc unit.Location) (*unit.Unit, error)
}

// Orchestrator runs units on a bounded pool and merges their output.
//
// Thread-safety model:
//   - Run(): may be called from one goroutine at a time
//   - the only state shared between workers is the record accumulator,
//     guarded by a mutex
type Orchestrator struct {
	loader   Loader
	watchdog *Watchdog
	workers  int
	logger   *slog.Logger
	observer Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers sets the pool size. Values below 1 keep the default.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithTimeout sets the per-unit deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.watchdog.Timeout = d
	}
}

// WithLogger sets the logger for per-unit START/FINISH lines.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver registers an observer for finished units.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// New creates an Orchestrator that loads units with loader.
func New(loader Loader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		loader:   loader,
		watchdog: &Watchdog{Timeout: DefaultTimeout},
		workers:  DefaultWorkers(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Workers returns the pool size.
func (o *Orchestrator) Workers() int {
	return o.workers
}

// Run loads and executes every location and blocks until each unit has
// finished or been abandoned by its watchdog.
//
// Run never fails: a unit that cannot be loaded, errors, panics, times out
// or returns malformed output contributes zero records and is described in
// its UnitReport. Cancelling ctx abandons in-flight units and marks units
// not yet started as canceled.
func (o *Orchestrator) Run(ctx context.Context, locs []unit.Location) *Result {
	res := &Result{Units: make([]UnitReport, len(locs))}
	if len(locs) == 0 {
		o.logger.Info("no units to run")
		return res
	}

	o.logger.Info("running units", "count", len(locs), "workers", o.workers, "timeout", o.watchdog.timeout())
	started := time.Now()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.workers)

	for i, loc := range locs {
		g.Go(func() error {
			report, records := o.runOne(ctx, loc)

			// Each worker owns its own report slot.
			res.Units[i] = report

			mu.Lock()
			res.Records = append(res.Records, records...)
			mu.Unlock()

			if o.observer != nil {
				o.observer.UnitFinished(report)
			}
			return nil
		})
	}
	_ = g.Wait()

	o.logger.Info("all units done", "duration", time.Since(started), "records", len(res.Records))
	return res
}

// runOne takes one location through load, execute and validate.
// The deadline covers loading as well as the entry point.
func (o *Orchestrator) runOne(ctx context.Context, loc unit.Location) (UnitReport, []ir.Record) {
	report := UnitReport{Name: loc.Name(), Location: loc.String(), Namespace: loc.Namespace()}
	started := time.Now()
	log := o.logger.With("unit", report.Name, "namespace", report.Namespace)

	finish := func(err error) {
		report.Duration = time.Since(started)
		report.Err = err
		if report.Status == "" {
			report.Status = statusOf(err)
		}
		switch report.Status {
		case StatusOK:
			log.Info("FINISH", "records", report.Records, "dropped", report.Dropped, "duration", report.Duration)
		case StatusTimeout:
			log.Error("TIMEOUT", "error", err, "duration", report.Duration)
		case StatusCanceled:
			log.Warn("CANCELED", "error", err, "duration", report.Duration)
		default:
			log.Error("ERROR", "status", string(report.Status), "error", err, "duration", report.Duration)
		}
	}

	if err := ctx.Err(); err != nil {
		finish(err)
		return report, nil
	}

	log.Info("START")

	out, err := o.watchdog.LoadAndExecute(ctx, o.loader, loc)
	if err != nil {
		finish(err)
		return report, nil
	}

	records, invalid := validateOutput(report.Name, out)
	for _, ve := range invalid {
		if ve.Index < 0 {
			report.Status = StatusInvalidOutput
			finish(ve)
			return report, nil
		}
		log.Warn("dropping element", "index", ve.Index, "reason", ve.Reason)
	}

	report.Records = len(records)
	report.Dropped = len(invalid)
	finish(nil)
	return report, records
}
