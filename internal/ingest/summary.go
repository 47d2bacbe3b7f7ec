package ingest

import (
	"time"

	"github.com/roach88/harvest/internal/runner"
)

// Summary reports what one run did.
type Summary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Simulated  bool      `json:"simulated"`
	Truncated  bool      `json:"truncated"`

	// Units has one entry per manifest location, in manifest order.
	Units      []UnitSummary         `json:"units"`
	UnitStatus map[runner.Status]int `json:"unit_status"`

	// Record flow: collected by units, then dropped along the way.
	Collected    int `json:"collected"`
	Dropped      int `json:"dropped"`
	Unclassified int `json:"unclassified"`
	Duplicates   int `json:"duplicates"`
	Collisions   int `json:"identity_collisions"`

	// Persisted is the number of canonical records per kind. In simulate
	// mode it is what would have been written.
	Persisted map[string]int `json:"persisted"`
}

// UnitSummary is the printable form of a runner.UnitReport.
type UnitSummary struct {
	Name     string        `json:"name"`
	Location string        `json:"location"`
	Status   runner.Status `json:"status"`
	Records  int           `json:"records"`
	Dropped  int           `json:"dropped"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Duration returns the wall time of the run.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// TotalPersisted returns the record count across all kinds.
func (s *Summary) TotalPersisted() int {
	n := 0
	for _, c := range s.Persisted {
		n += c
	}
	return n
}

func summarizeUnits(reports []runner.UnitReport) []UnitSummary {
	out := make([]UnitSummary, len(reports))
	for i, r := range reports {
		out[i] = UnitSummary{
			Name:     r.Name,
			Location: r.Location,
			Status:   r.Status,
			Records:  r.Records,
			Dropped:  r.Dropped,
			Duration: r.Duration,
			Error:    r.Error(),
		}
	}
	return out
}
