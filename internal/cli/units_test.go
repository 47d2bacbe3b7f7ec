package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/harvest/internal/testutil"
)

func unitsCLI(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newUnitsCommand(&UnitsOptions{
		RootOptions: &RootOptions{Format: format},
		Catalog:     testCatalog(t),
	})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestUnits_ListsManifest(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteScript(t, dir, "cities/austin.go", "func Collect() []any { return nil }")
	testutil.WriteManifest(t, dir,
		"# sources",
		"builtin:good",
		"cities/austin.go",
		"builtin:missing",
	)

	stdout, err := unitsCLI(t, "text", "--units-dir", dir)
	require.NoError(t, err)

	assert.Contains(t, stdout, "NAME")
	assert.Contains(t, stdout, "good")
	assert.Contains(t, stdout, "austin")
	assert.Contains(t, stdout, "cities")
	assert.Contains(t, stdout, "skipped line 4 (builtin:missing): unknown builtin unit")
}

func TestUnits_JSON(t *testing.T) {
	dir := inTempDir(t)
	testutil.WriteManifest(t, dir, "builtin:good", "builtin:good")

	stdout, err := unitsCLI(t, "json", "--units-dir", dir)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   UnitsResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Units, 1)
	assert.Equal(t, "good", resp.Data.Units[0].Name)
	assert.Equal(t, 1, resp.Data.Units[0].Line)
	require.Len(t, resp.Data.Skipped, 1)
	assert.Equal(t, 2, resp.Data.Skipped[0].Line)
}

func TestUnits_MissingManifest(t *testing.T) {
	dir := inTempDir(t)

	_, err := unitsCLI(t, "text", "--units-dir", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
