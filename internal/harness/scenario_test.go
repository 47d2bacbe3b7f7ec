package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
timeout: 50ms
units:
  - name: good
    records:
      - {type: foodbank, id: x42, count: 3}
  - name: slow
    sleep: 2s
    ignore_context: true
expect:
  persisted: {foodbank: 1}
  dropped: 0
assertions:
  - type: row_count
    table: foodbanks
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, 50*time.Millisecond, scenario.Timeout)
	require.Len(t, scenario.Units, 2)
	assert.Equal(t, map[string]any{"type": "foodbank", "id": "x42", "count": 3}, scenario.Units[0].Records[0])
	assert.Equal(t, 2*time.Second, scenario.Units[1].Sleep)
	assert.True(t, scenario.Units[1].IgnoreContext)
	assert.Nil(t, scenario.Truncate)
	require.NotNil(t, scenario.Expect.Dropped)
	assert.Zero(t, *scenario.Expect.Dropped)
	assert.Nil(t, scenario.Expect.Duplicates)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "misspelled key"
unitz: []
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: x\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\n",
			wantErr: "description is required",
		},
		{
			name: "unit without behavior",
			content: `name: x
description: x
units:
  - name: idle
`,
			wantErr: "one of records, output, sleep, error, panic or script is required",
		},
		{
			name: "two behaviors",
			content: `name: x
description: x
units:
  - name: both
    error: boom
    panic: boom
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "duplicate unit",
			content: `name: x
description: x
units:
  - {name: a, error: boom}
  - {name: a, error: boom}
`,
			wantErr: "duplicate name",
		},
		{
			name: "unsafe unit name",
			content: `name: x
description: x
units:
  - {name: "a-b", error: boom}
`,
			wantErr: "must be [A-Za-z0-9_]",
		},
		{
			name: "deferred without output",
			content: `name: x
description: x
units:
  - {name: a, error: boom, deferred: true}
`,
			wantErr: "deferred requires records or output",
		},
		{
			name: "ignore_context without sleep",
			content: `name: x
description: x
units:
  - {name: a, error: boom, ignore_context: true}
`,
			wantErr: "ignore_context requires sleep",
		},
		{
			name: "bad exit code",
			content: `name: x
description: x
expect: {exit_code: 2}
`,
			wantErr: "exit_code must be 0 or 1",
		},
		{
			name: "simulate with failing store",
			content: `name: x
description: x
simulate: true
fail_store: true
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "unknown assertion",
			content: `name: x
description: x
assertions:
  - type: trace_contains
`,
			wantErr: "unknown type",
		},
		{
			name: "final_state without expect",
			content: `name: x
description: x
assertions:
  - {type: final_state, table: foodbanks}
`,
			wantErr: "expect is required for final_state",
		},
		{
			name: "unit_status without status",
			content: `name: x
description: x
assertions:
  - {type: unit_status, unit: a}
`,
			wantErr: "unit and status are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	files, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.IsIncreasing(t, files)
	for _, f := range files {
		assert.Equal(t, ".yaml", filepath.Ext(f))
	}

	single, err := FindScenarios(files[0])
	require.NoError(t, err)
	assert.Equal(t, files[:1], single)

	_, err = FindScenarios("testdata/nope")
	assert.Error(t, err)
}
