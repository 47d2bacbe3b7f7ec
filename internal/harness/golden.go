package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/harvest/internal/ir"
)

// Snapshot is the deterministic part of a scenario result: unit outcomes,
// counts and the persisted identifiers. Durations and error text are left
// out so the snapshot stays byte-stable.
type Snapshot struct {
	ScenarioName string
	Result       *Result
}

// toCanonicalMap converts the snapshot to a value tree for canonical JSON.
func (s *Snapshot) toCanonicalMap() map[string]any {
	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"exit_code":     s.Result.ExitCode,
	}

	if sum := s.Result.Summary; sum != nil {
		units := make([]any, len(sum.Units))
		for i, u := range sum.Units {
			units[i] = map[string]any{
				"name":    u.Name,
				"status":  string(u.Status),
				"records": u.Records,
				"dropped": u.Dropped,
			}
		}
		persisted := make(map[string]any, len(sum.Persisted))
		for kind, n := range sum.Persisted {
			persisted[kind] = n
		}
		out["run_id"] = sum.RunID
		out["simulated"] = sum.Simulated
		out["units"] = units
		out["persisted"] = persisted
		out["dropped"] = sum.Dropped
		out["duplicates"] = sum.Duplicates
		out["unclassified"] = sum.Unclassified
		out["identity_collisions"] = sum.Collisions
	}

	rows := make(map[string]any, len(s.Result.Rows))
	for table, rs := range s.Result.Rows {
		list := make([]any, len(rs))
		for i, r := range rs {
			list[i] = map[string]any{"id": r.ID, "name": r.Name}
		}
		rows[table] = list
	}
	out["rows"] = rows
	return out
}

// MarshalSnapshot renders the snapshot of result as canonical JSON.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snap := Snapshot{ScenarioName: name, Result: result}
	return ir.MarshalCanonical(snap.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
