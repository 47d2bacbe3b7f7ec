package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/harvest/internal/unit"
)

// UnitsOptions holds flags for the units command.
type UnitsOptions struct {
	*RootOptions

	// Catalog overrides the builtin unit catalog (for testing).
	Catalog *unit.Catalog
}

// UnitEntry is one validated manifest location.
type UnitEntry struct {
	Line      int    `json:"line"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Location  string `json:"location"`
}

// SkippedLine is a manifest line the registry refused.
type SkippedLine struct {
	Line   int    `json:"line"`
	Entry  string `json:"entry"`
	Reason string `json:"reason"`
}

// UnitsResult lists what the next run would execute.
type UnitsResult struct {
	Manifest string        `json:"manifest"`
	Units    []UnitEntry   `json:"units"`
	Skipped  []SkippedLine `json:"skipped"`
}

// NewUnitsCommand creates the units command.
func NewUnitsCommand(rootOpts *RootOptions) *cobra.Command {
	return newUnitsCommand(&UnitsOptions{RootOptions: rootOpts})
}

func newUnitsCommand(opts *UnitsOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "units",
		Short: "List the units the manifest resolves to",
		Long: `Read the manifest and print every unit the next run would execute, with the
namespace its records are attributed to, followed by any lines that would be
skipped.

Examples:
  harvest units
  harvest units --units-dir ./units --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnits(opts, cmd)
		},
	}
	addUnitFlags(cmd)
	return cmd
}

func runUnits(opts *UnitsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	logger := newLogger(cfg.Log, cmd.ErrOrStderr(), opts.Verbose)

	result, _, err := readManifest(cfg.Units.BaseDir, cfg.Units.Manifest, catalogOrBuiltins(opts.Catalog), logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeManifest, "cannot read manifest", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	if len(result.Units) == 0 {
		fmt.Fprintf(w, "No units in %s\n", result.Manifest)
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LINE\tNAME\tNAMESPACE\tLOCATION")
		for _, u := range result.Units {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.Line, u.Name, u.Namespace, u.Location)
		}
		tw.Flush()
	}
	for _, s := range result.Skipped {
		fmt.Fprintf(w, "skipped line %d (%s): %s\n", s.Line, s.Entry, s.Reason)
	}
	return nil
}
