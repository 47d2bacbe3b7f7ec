package harness

import "github.com/roach88/harvest/internal/ingest"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the expect block and every assertion match.
	Pass bool `json:"pass"`

	// ExitCode is what the run command would have exited with.
	ExitCode int `json:"exit_code"`

	// Summary is the pipeline's own report.
	Summary *ingest.Summary `json:"summary"`

	// Rows holds the persisted rows per table after the run.
	Rows map[string][]RowSnapshot `json:"rows"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// RowSnapshot is the stable part of a persisted row.
type RowSnapshot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Rows:   make(map[string][]RowSnapshot),
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
