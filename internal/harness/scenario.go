package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTimeout is the per-unit deadline of a scenario that sets none.
const DefaultTimeout = 250 * time.Millisecond

// Scenario defines one ingestion run and its expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID fixes the run id. Empty means the FixedRunIDGenerator default.
	RunID string `yaml:"run_id,omitempty"`

	// Timeout is the per-unit deadline. Zero means DefaultTimeout.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Workers sizes the pool. Zero means the orchestrator default.
	Workers int `yaml:"workers,omitempty"`

	// Truncate defaults to true, like the command line.
	Truncate *bool `yaml:"truncate,omitempty"`

	// Simulate runs without writing.
	Simulate bool `yaml:"simulate,omitempty"`

	// FailStore closes the store before the run so the commit fails.
	FailStore bool `yaml:"fail_store,omitempty"`

	// Seed records are committed as a previous snapshot before the run.
	Seed []map[string]any `yaml:"seed,omitempty"`

	// Units are written to the manifest in declaration order.
	Units []UnitSpec `yaml:"units"`

	// ManifestExtra lines are appended to the manifest verbatim.
	ManifestExtra []string `yaml:"manifest_extra,omitempty"`

	// Expect checks the run summary.
	Expect Expect `yaml:"expect"`

	// Assertions check individual units and the persisted rows.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// UnitSpec is one stub unit. See the package documentation for behaviors.
type UnitSpec struct {
	Name          string        `yaml:"name"`
	Records       []any         `yaml:"records,omitempty"`
	Output        any           `yaml:"output,omitempty"`
	Deferred      bool          `yaml:"deferred,omitempty"`
	Sleep         time.Duration `yaml:"sleep,omitempty"`
	IgnoreContext bool          `yaml:"ignore_context,omitempty"`
	Error         string        `yaml:"error,omitempty"`
	Panic         string        `yaml:"panic,omitempty"`
	Script        string        `yaml:"script,omitempty"`
}

// behaviors lists the behavior keys set on u.
func (u *UnitSpec) behaviors() []string {
	var set []string
	if u.Records != nil {
		set = append(set, "records")
	}
	if u.Output != nil {
		set = append(set, "output")
	}
	if u.Sleep > 0 {
		set = append(set, "sleep")
	}
	if u.Error != "" {
		set = append(set, "error")
	}
	if u.Panic != "" {
		set = append(set, "panic")
	}
	if u.Script != "" {
		set = append(set, "script")
	}
	return set
}

// Expect is compared against the run summary. Nil fields are not checked.
type Expect struct {
	ExitCode     int            `yaml:"exit_code"`
	Persisted    map[string]int `yaml:"persisted,omitempty"`
	Units        map[string]int `yaml:"units,omitempty"`
	Dropped      *int           `yaml:"dropped,omitempty"`
	Duplicates   *int           `yaml:"duplicates,omitempty"`
	Unclassified *int           `yaml:"unclassified,omitempty"`
	Collisions   *int           `yaml:"identity_collisions,omitempty"`
}

// Assertion checks one unit or the persisted state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": exactly one row in Table matching Where has Expect
	// - "row_count": Table holds exactly Count rows
	// - "unit_status": Unit finished with Status
	Type string `yaml:"type"`

	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
	Count  int            `yaml:"count,omitempty"`
	Unit   string         `yaml:"unit,omitempty"`
	Status string         `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertRowCount   = "row_count"
	AssertUnitStatus = "unit_status"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns path itself when it is a file, or every .yaml and
// .yml file directly inside it, sorted.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if s.Simulate && s.FailStore {
		return fmt.Errorf("simulate and fail_store are mutually exclusive")
	}

	seen := make(map[string]bool, len(s.Units))
	for i := range s.Units {
		u := &s.Units[i]
		if u.Name == "" {
			return fmt.Errorf("units[%d]: name is required", i)
		}
		if strings.ContainsFunc(u.Name, func(r rune) bool {
			return !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
		}) {
			return fmt.Errorf("units[%d]: name %q must be [A-Za-z0-9_]", i, u.Name)
		}
		if seen[u.Name] {
			return fmt.Errorf("units[%d]: duplicate name %q", i, u.Name)
		}
		seen[u.Name] = true

		set := u.behaviors()
		switch {
		case len(set) == 0:
			return fmt.Errorf("units[%d]: one of records, output, sleep, error, panic or script is required", i)
		case len(set) > 1:
			return fmt.Errorf("units[%d]: behaviors %v are mutually exclusive", i, set)
		}
		if u.Deferred && u.Records == nil && u.Output == nil {
			return fmt.Errorf("units[%d]: deferred requires records or output", i)
		}
		if u.IgnoreContext && u.Sleep == 0 {
			return fmt.Errorf("units[%d]: ignore_context requires sleep", i)
		}
	}

	if s.Expect.ExitCode != 0 && s.Expect.ExitCode != 1 {
		return fmt.Errorf("expect.exit_code must be 0 or 1")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertUnitStatus:
		if a.Unit == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: unit and status are required for unit_status", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q (valid: final_state, row_count, unit_status)", index, a.Type)
	}
	return nil
}
