package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/harvest/internal/unit"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions

	// Catalog overrides the builtin unit catalog (for testing).
	Catalog *unit.Catalog
}

// UnitCheck is the load outcome of one unit.
type UnitCheck struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool          `json:"valid"`
	Kinds   []string      `json:"kinds"`
	Units   []UnitCheck   `json:"units"`
	Skipped []SkippedLine `json:"skipped"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return newValidateCommand(&ValidateOptions{RootOptions: rootOpts})
}

func newValidateCommand(opts *ValidateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check config, schema and units without running anything",
		Long: `Validate the configuration and the kinds schema, then load every unit in the
manifest (interpreting script units) without calling any entry point.

Exit codes:
  0 - Everything loads
  1 - At least one unit failed to load or a manifest line was skipped
  2 - Command error (invalid config, schema or missing manifest)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}
	addUnitFlags(cmd)
	cmd.Flags().String("schema-file", "", "replacement CUE kinds declaration")
	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
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
	formatter.VerboseLog("schema declares %d kinds", len(s.Kinds))

	cat := catalogOrBuiltins(opts.Catalog)
	listing, locs, err := readManifest(cfg.Units.BaseDir, cfg.Units.Manifest, cat, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeManifest, "cannot read manifest", err)
	}

	result := ValidationResult{
		Valid:   len(listing.Skipped) == 0,
		Kinds:   s.KindNames(),
		Units:   make([]UnitCheck, len(locs)),
		Skipped: listing.Skipped,
	}

	loader := &unit.Loader{Catalog: cat, Stdout: cmd.ErrOrStderr()}
	for i, loc := range locs {
		check := UnitCheck{Name: loc.Name(), Location: loc.String(), OK: true}
		if _, err := loader.Load(loc); err != nil {
			check.OK = false
			check.Error = err.Error()
			result.Valid = false
		}
		formatter.VerboseLog("loaded %s: ok=%t", check.Location, check.OK)
		result.Units[i] = check
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeUnits, Message: "some units are not loadable"}
		}
		if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, u := range result.Units {
			if u.OK {
				fmt.Fprintf(w, "✓ %s\n", u.Location)
			} else {
				fmt.Fprintf(w, "✗ %s: %s\n", u.Location, u.Error)
			}
		}
		for _, sk := range result.Skipped {
			fmt.Fprintf(w, "✗ line %d (%s): %s\n", sk.Line, sk.Entry, sk.Reason)
		}
		if result.Valid {
			fmt.Fprintf(w, "All %d units valid\n", len(result.Units))
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "some units are not loadable")
	}
	return nil
}
