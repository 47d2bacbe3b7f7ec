package store

import "fmt"

// Commit steps, in execution order.
const (
	StepOpen         = "open"
	StepBegin        = "begin"
	StepEnsureSchema = "ensure_schema"
	StepTruncate     = "truncate"
	StepInsert       = "insert"
	StepLedger       = "ledger"
	StepCommit       = "commit"
)

// PersistenceError reports a failed store operation. When it comes from
// Commit the transaction has been rolled back and nothing was written.
type PersistenceError struct {
	// Step is the operation that failed (one of the Step constants).
	Step string

	// Kind is the entity kind being written, when the failure is per kind.
	Kind string

	Err error
}

func (e *PersistenceError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("persistence %s (%s): %v", e.Step, e.Kind, e.Err)
	}
	return fmt.Sprintf("persistence %s: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
