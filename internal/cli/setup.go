package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/harvest/internal/config"
	"github.com/roach88/harvest/internal/schema"
	"github.com/roach88/harvest/internal/store"
)

// newFormatter builds the formatter for cmd. Diagnostics go to stderr so
// JSON on stdout stays parseable.
func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadConfig resolves configuration for cmd: its flags, the environment,
// the config file and defaults.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	return config.Load(opts.ConfigFile, cmd.Flags())
}

// newLogger builds the slog handler selected by cfg. Verbose forces debug.
func newLogger(cfg config.LogConfig, w io.Writer, verbose bool) *slog.Logger {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// loadSchema returns the replacement schema at path, or the embedded one.
func loadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		return schema.Default()
	}
	return schema.LoadFile(path)
}

// openStore opens the configured store.
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Database.Driver, cfg.DSN())
}

// addUnitFlags registers the flags that locate the manifest.
func addUnitFlags(cmd *cobra.Command) {
	cmd.Flags().String("units-dir", config.DefaultBaseDir, "directory holding the manifest and script units")
	cmd.Flags().String("manifest", config.DefaultManifest, "manifest file, relative to --units-dir")
	cmd.Flags().String("log-level", config.DefaultLogLevel, "log level (debug|info|warn|error)")
	cmd.Flags().String("log-format", config.DefaultLogFormat, "log format (text|json)")
}
