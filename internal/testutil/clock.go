package testutil

import (
	"sync"
	"time"
)

// FixedClock is a settable wall clock for tests.
//
// The pipeline stamps every canonical record of a run with one ingestion
// time taken from its clock, so a FixedClock makes persisted rows and golden
// output byte-stable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// DefaultTime is the instant NewFixedClock uses for a zero argument.
var DefaultTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// NewFixedClock creates a clock frozen at t (UTC).
// A zero t selects DefaultTime.
func NewFixedClock(t time.Time) *FixedClock {
	if t.IsZero() {
		t = DefaultTime
	}
	return &FixedClock{now: t.UTC()}
}

// Now returns the frozen time. It matches the func() time.Time hooks the
// pipeline accepts.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
