package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/harvest/internal/testutil"
)

func validateCLI(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newValidateCommand(&ValidateOptions{
		RootOptions: &RootOptions{Format: format},
		Catalog:     testCatalog(t),
	})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestValidate_AllUnitsLoad(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteScript(t, dir, "austin.go", "func Collect() []any { return nil }")
	testutil.WriteManifest(t, dir, "builtin:good", "austin.go")

	stdout, err := validateCLI(t, "text", "--units-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ builtin:good")
	assert.Contains(t, stdout, "All 2 units valid")
}

func TestValidate_BrokenScriptExitsOne(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteScript(t, dir, "broken.go", "func Collect() []any { return nil ")
	testutil.WriteManifest(t, dir, "builtin:good", "broken.go")

	stdout, err := validateCLI(t, "text", "--units-dir", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ ")
	assert.Contains(t, stdout, "parse failed")
}

func TestValidate_SkippedLineIsInvalid(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteManifest(t, dir, "builtin:good", "missing.go")

	stdout, err := validateCLI(t, "json", "--units-dir", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, []string{"foodbank", "program", "sponsor"}, resp.Data.Kinds)
	require.Len(t, resp.Data.Skipped, 1)
	assert.Equal(t, "file does not exist", resp.Data.Skipped[0].Reason)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnits, resp.Error.Code)
}

func TestValidate_InvalidSchemaExitsTwo(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteManifest(t, dir, "builtin:good")
	schemaFile := testutil.WriteFile(t, dir, "kinds.cue", "kinds: [{name: 1}]\n")

	stdout, err := validateCLI(t, "text", "--units-dir", dir, "--schema-file", schemaFile)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeSchema)
}

func TestValidate_MissingManifestExitsTwo(t *testing.T) {
	dir := inTempDir(t)

	stdout, err := validateCLI(t, "text", "--units-dir", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeManifest)
}
