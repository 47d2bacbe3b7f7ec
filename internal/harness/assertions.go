package harness

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/harvest/internal/ir"
	"github.com/roach88/harvest/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dataPrefix addresses an attribute inside the data column, as in
// "data.city".
const dataPrefix = "data."

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// assertUnitStatus checks how one unit finished.
func assertUnitStatus(result *Result, assertion Assertion) error {
	if result.Summary == nil {
		return &AssertionError{Type: AssertUnitStatus, Expected: "a run summary", Actual: "none"}
	}
	for _, u := range result.Summary.Units {
		if u.Name != assertion.Unit {
			continue
		}
		if string(u.Status) != assertion.Status {
			return &AssertionError{
				Type:     AssertUnitStatus,
				Expected: fmt.Sprintf("unit %s status %s", assertion.Unit, assertion.Status),
				Actual:   fmt.Sprintf("status %s (%s)", u.Status, u.Error),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertUnitStatus,
		Expected: fmt.Sprintf("unit %s in the run", assertion.Unit),
		Actual:   "unit not found (was its manifest line skipped?)",
	}
}

// assertRowCount checks the number of rows in a table.
func assertRowCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	n, err := st.CountRows(ctx, assertion.Table)
	if err != nil {
		if !isMissingTable(err) {
			return &AssertionError{
				Type:     AssertRowCount,
				Expected: fmt.Sprintf("count rows in %s", assertion.Table),
				Actual:   fmt.Sprintf("query error: %v", err),
			}
		}
		n = 0
	}
	if n != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s", assertion.Count, assertion.Table),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

// assertFinalState checks that exactly one row matches Where and that it
// holds the expected values (subset semantics). Expect keys are column names,
// or "data.<attribute>" for a value inside the data column.
//
// Table and column names are validated against a whitelist pattern since
// identifiers cannot be parameterized.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT id, name, data FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.DB().QueryContext(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	whereDesc := formatWhereClause(assertion.Where)
	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	}

	var (
		id   string
		name sql.NullString
		data []byte
	)
	if err := rows.Scan(&id, &name, &data); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// Multiple matching rows would make the assertion ambiguous.
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		return fmt.Errorf("decode data of %s: %w", id, err)
	}
	actualRow := map[string]any{"id": id, "name": name.String}

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expectedValue := assertion.Expect[key]

		var (
			actualValue any
			exists      bool
		)
		if attr, ok := strings.CutPrefix(key, dataPrefix); ok {
			actualValue, exists = attrs[attr]
		} else {
			actualValue, exists = actualRow[key]
		}
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in row %s", key, id),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}
	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, key+" = ?")
		args = append(args, toSQLValue(where[key]))
	}
	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares an expected YAML value with a stored value.
// Both sides are brought to the canonical JSON form first, so 5 (YAML int)
// equals 5 (JSON float) and nested lists and objects compare structurally.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	e, errE := ir.MarshalCanonical(expected)
	a, errA := ir.MarshalCanonical(actual)
	if errE != nil || errA != nil {
		return reflect.DeepEqual(expected, actual)
	}
	return string(e) == string(a)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertUnitStatus:
			err = assertUnitStatus(result, assertion)
		case AssertRowCount, AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertRowCount {
				err = assertRowCount(actx.Ctx, actx.Store, assertion)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
