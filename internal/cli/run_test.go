package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/harvest/internal/ingest"
	"github.com/roach88/harvest/internal/store"
	"github.com/roach88/harvest/internal/testutil"
)

// runCLI executes the run command against the test catalog.
func runCLI(t *testing.T, format string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: format},
		Catalog:     testCatalog(t),
		RunIDs:      testutil.NewFixedRunIDGenerator("run-1"),
		Now:         testutil.NewFixedClock(time.Time{}).Now,
	}
	cmd := newRunCommand(opts)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRun_PersistsAndReportsUnitFailures(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteManifest(t, dir, "builtin:good", "builtin:failing")
	dbPath := filepath.Join(dir, "out.db")

	stdout, _, err := runCLI(t, "text", "--units-dir", dir, "--db-url", dbPath)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Run run-1 finished")
	assert.Contains(t, stdout, "Units: 2 total, ok=1 runtime_error=1")
	assert.Contains(t, stdout, "Persisted: foodbank=3 program=0 sponsor=0")
	assert.Contains(t, stdout, "✗ failing (runtime_error): ")

	st, err := store.OpenSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close()
	n, err := st.CountRows(t.Context(), "foodbanks")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRun_JSONOutput(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteManifest(t, dir, "builtin:good")

	stdout, _, err := runCLI(t, "json", "--units-dir", dir, "--db-url", filepath.Join(dir, "out.db"))
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		RunID  string         `json:"run_id"`
		Data   ingest.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, 3, resp.Data.Collected)
	assert.Equal(t, 1, resp.Data.Dropped)
	assert.Equal(t, 3, resp.Data.Persisted["foodbank"])
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteManifest(t, dir, "builtin:good")
	dbPath := filepath.Join(dir, "out.db")

	stdout, _, err := runCLI(t, "text", "--units-dir", dir, "--db-url", dbPath, "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, stdout, "dry run, nothing written")
	assert.Contains(t, stdout, "Would persist: foodbank=3")
	_, statErr := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(statErr), "dry run must not create the database")
}

func TestRun_StoreOpenFailureExitsOne(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteManifest(t, dir, "builtin:good")
	missing := filepath.Join(dir, "no", "such", "dir", "out.db")

	_, _, err := runCLI(t, "text", "--units-dir", dir, "--db-url", missing)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRun_InvalidConfigExitsTwo(t *testing.T) {
	dir := inTempDir(t)

	stdout, _, err := runCLI(t, "json", "--units-dir", dir, "--workers=-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeConfig)
}

func TestRun_InvalidSchemaExitsTwo(t *testing.T) {
	dir := inTempDir(t)
	schemaFile := testutil.WriteFile(t, dir, "kinds.cue", "kinds: 3\n")

	_, _, err := runCLI(t, "text", "--units-dir", dir, "--schema-file", schemaFile, "--dry-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_ConfigFileFromWorkingDirectory(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteManifest(t, dir, "builtin:good")
	testutil.WriteFile(t, dir, "harvest.yaml", "units:\n  base_dir: "+dir+"\nload:\n  dry_run: true\n")

	stdout, _, err := runCLI(t, "text")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Would persist: foodbank=3")
}

func TestRun_EnvironmentOverridesDefaults(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteManifest(t, dir, "builtin:good")
	t.Setenv("HARVEST_UNITS_BASE_DIR", dir)
	t.Setenv("DRY_RUN", "true")

	stdout, _, err := runCLI(t, "text")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dry run")
}

func TestRun_MetricsFile(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteManifest(t, dir, "builtin:good")
	metricsFile := filepath.Join(dir, "harvest.prom")

	_, _, err := runCLI(t, "text", "--units-dir", dir, "--dry-run", "--metrics-file", metricsFile)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `harvest_units_total{status="ok"} 1`)
}
