package runner

import (
	"fmt"
	"time"
)

// TimeoutError reports a unit that did not finish within its deadline.
type TimeoutError struct {
	Unit    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("unit %s: timed out after %s", e.Unit, e.Timeout)
}

// RuntimeError reports a unit whose entry point returned an error or panicked.
type RuntimeError struct {
	Unit string

	// Panic holds the recovered value when the unit panicked.
	Panic any

	// Err is the error the unit returned. Nil when Panic is set.
	Err error
}

func (e *RuntimeError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("unit %s: panic: %v", e.Unit, e.Panic)
	}
	return fmt.Sprintf("unit %s: %v", e.Unit, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// ValidationError reports unit output that does not have the expected shape.
// Index is the offending element, or -1 when the whole output is rejected.
type ValidationError struct {
	Unit   string
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("unit %s: invalid output: %s", e.Unit, e.Reason)
	}
	return fmt.Sprintf("unit %s: element %d: %s", e.Unit, e.Index, e.Reason)
}
