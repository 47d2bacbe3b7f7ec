package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/harvest/internal/config"
	"github.com/roach88/harvest/internal/ingest"
	"github.com/roach88/harvest/internal/metrics"
	"github.com/roach88/harvest/internal/runner"
	"github.com/roach88/harvest/internal/unit"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Catalog overrides the builtin unit catalog (for testing).
	Catalog *unit.Catalog

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs ingest.RunIDGenerator

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}
	return newRunCommand(opts)
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every unit in the manifest and replace the snapshot",
		Long: `Run every unit listed in the manifest on a bounded worker pool, normalize
their records into the foodbank, program and sponsor tables and commit the
result in one transaction.

Units that fail to load, time out, error or return malformed output are
reported and skipped; they never fail the run.

Exit codes:
  0 - Run finished (including units that failed, and --dry-run)
  1 - The store could not be opened or the commit failed
  2 - Command error (invalid flags, config or schema)

Examples:
  harvest run
  harvest run --units-dir ./units --workers 16 --timeout 2m
  harvest run --dry-run --format json
  HARVEST_DATABASE_DRIVER=pgx HARVEST_DATABASE_URL=postgres://... harvest run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd)
		},
	}

	addUnitFlags(cmd)
	f := cmd.Flags()
	f.Int("workers", 0, "worker pool size (0 = max(NumCPU, 8))")
	f.Duration("timeout", config.DefaultTimeout, "per-unit deadline")
	f.Bool("truncate", true, "replace the previous snapshot instead of upserting into it")
	f.Bool("dry-run", false, "run and normalize but write nothing")
	f.String("db-driver", config.DefaultDriver, "store driver (sqlite3|pgx)")
	f.String("db-url", "", "store DSN; overrides the discrete database settings")
	f.String("metrics-file", "", "write Prometheus metrics to this file after the run")
	f.String("schema-file", "", "replacement CUE kinds declaration")

	return cmd
}

func runIngest(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	logger := newLogger(cfg.Log, cmd.ErrOrStderr(), opts.Verbose)

	s, err := loadSchema(cfg.Schema.File)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSchema, "invalid schema", err)
	}

	in := ingest.Options{
		Schema:       s,
		BaseDir:      cfg.Units.BaseDir,
		Manifest:     cfg.Units.Manifest,
		Catalog:      opts.Catalog,
		Workers:      cfg.Units.Workers,
		Timeout:      cfg.Units.Timeout,
		Truncate:     cfg.Load.Truncate,
		Simulate:     cfg.Load.DryRun,
		Metrics:      metrics.NewCollector(),
		MetricsFile:  cfg.Metrics.File,
		ScriptOutput: cmd.ErrOrStderr(),
		Logger:       logger,
		Now:          opts.Now,
		RunIDs:       opts.RunIDs,
	}

	if !cfg.Load.DryRun {
		logger.Info("opening store", "driver", cfg.Database.Driver, "dsn", cfg.RedactedDSN())
		st, err := openStore(cfg)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeStoreOpen, "failed to open store", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing store", "error", closeErr)
			}
		}()
		in.Store = st
	}

	sum, err := ingest.Run(cmd.Context(), in)
	if err != nil {
		if sum != nil && opts.Format != "json" {
			writeSummary(cmd.OutOrStdout(), sum)
		}
		return formatter.Fail(ExitFailure, ErrCodePersistence, "persistence failed, nothing was written", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: sum, RunID: sum.RunID})
	}
	writeSummary(cmd.OutOrStdout(), sum)
	return nil
}

// writeSummary prints a run summary for humans.
func writeSummary(w io.Writer, sum *ingest.Summary) {
	mode := ""
	if sum.Simulated {
		mode = " (dry run, nothing written)"
	}
	fmt.Fprintf(w, "Run %s finished in %s%s\n", sum.RunID, sum.Duration().Round(time.Millisecond), mode)

	statuses := make([]string, 0, len(runner.Statuses))
	for _, st := range runner.Statuses {
		if n := sum.UnitStatus[st]; n > 0 {
			statuses = append(statuses, fmt.Sprintf("%s=%d", st, n))
		}
	}
	fmt.Fprintf(w, "Units: %d total", len(sum.Units))
	if len(statuses) > 0 {
		fmt.Fprintf(w, ", %s", strings.Join(statuses, " "))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Records: collected=%d dropped=%d duplicates=%d unclassified=%d collisions=%d\n",
		sum.Collected, sum.Dropped, sum.Duplicates, sum.Unclassified, sum.Collisions)

	if sum.Persisted != nil {
		kinds := make([]string, 0, len(sum.Persisted))
		for k := range sum.Persisted {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts := make([]string, len(kinds))
		for i, k := range kinds {
			parts[i] = fmt.Sprintf("%s=%d", k, sum.Persisted[k])
		}
		label := "Persisted"
		if sum.Simulated {
			label = "Would persist"
		}
		fmt.Fprintf(w, "%s: %s\n", label, strings.Join(parts, " "))
	}

	for _, u := range sum.Units {
		if u.Status == runner.StatusOK {
			continue
		}
		fmt.Fprintf(w, "  ✗ %s (%s): %s\n", u.Name, u.Status, u.Error)
	}
}
