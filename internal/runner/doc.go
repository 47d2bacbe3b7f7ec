// Package runner executes collection units concurrently.
//
// Two pieces live here:
//
// Watchdog runs one unit's entry point under a deadline. Direct and deferred
// units are driven the same way: the entry point runs in its own goroutine and
// the watchdog selects on the result, the deadline timer and the caller's
// context. Panics and returned errors become *RuntimeError; an expired
// deadline becomes *TimeoutError and the goroutine is abandoned. Go cannot
// stop a goroutine from outside, so a unit that ignores its context keeps
// running until it returns on its own. Entry points that accept a context get
// one that is cancelled at the deadline.
//
// Orchestrator loads and runs every unit on a bounded pool, validates each
// unit's output, and merges the surviving records into one result set. No
// per-unit failure ever fails the run; each unit gets a UnitReport instead.
//
// Ordering: records from one unit keep their order. Order across units is
// unspecified.
package runner
