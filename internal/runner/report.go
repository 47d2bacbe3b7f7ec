package runner

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/harvest/internal/ir"
	"github.com/roach88/harvest/internal/unit"
)

// Status is the outcome of one unit.
type Status string

const (
	StatusOK            Status = "ok"
	StatusLoadError     Status = "load_error"
	StatusTimeout       Status = "timeout"
	StatusRuntimeError  Status = "runtime_error"
	StatusInvalidOutput Status = "invalid_output"
	StatusCanceled      Status = "canceled"
)

// Statuses lists every status in reporting order.
var Statuses = []Status{
	StatusOK,
	StatusLoadError,
	StatusTimeout,
	StatusRuntimeError,
	StatusInvalidOutput,
	StatusCanceled,
}

// UnitReport describes how one unit fared.
type UnitReport struct {
	Name      string        `json:"name"`
	Location  string        `json:"location"`
	Namespace string        `json:"namespace,omitempty"`
	Status    Status        `json:"status"`
	Records   int           `json:"records"`
	Dropped   int           `json:"dropped"`
	Duration  time.Duration `json:"duration_ns"`
	Err       error         `json:"-"`
}

// Error returns the failure message, or "" for a unit that succeeded.
func (r UnitReport) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Result is the merged outcome of a run.
type Result struct {
	// Records are all validated records, in unit completion order.
	Records []ir.Record

	// Units has one report per manifest location, in manifest order.
	Units []UnitReport
}

// Dropped returns the number of output elements rejected by validation.
func (r *Result) Dropped() int {
	n := 0
	for _, u := range r.Units {
		n += u.Dropped
	}
	return n
}

// StatusCounts returns how many units ended in each status.
func (r *Result) StatusCounts() map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	for _, u := range r.Units {
		counts[u.Status]++
	}
	return counts
}

// Observer is notified as units finish. Implementations must be safe for
// concurrent use.
type Observer interface {
	UnitFinished(report UnitReport)
}

// statusOf classifies the error returned by the load or execute step.
func statusOf(err error) Status {
	var (
		le *unit.LoadError
		te *TimeoutError
		re *RuntimeError
	)
	switch {
	case err == nil:
		return StatusOK
	case errors.As(err, &le):
		return StatusLoadError
	case errors.As(err, &te):
		return StatusTimeout
	case errors.As(err, &re):
		return StatusRuntimeError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	default:
		return StatusRuntimeError
	}
}
