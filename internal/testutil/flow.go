package testutil

import (
	"fmt"
	"sync"
)

// FixedRunIDGenerator hands out predictable run ids.
//
// With no ids it returns "test-run-0001", "test-run-0002", ... in order.
// With ids it returns them in order and then repeats the last one, so a
// scenario that declares a single run id gets it for every run.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedRunIDGenerator struct {
	mu  sync.Mutex
	ids []string
	n   int
}

// NewFixedRunIDGenerator creates a generator over ids.
func NewFixedRunIDGenerator(ids ...string) *FixedRunIDGenerator {
	return &FixedRunIDGenerator{ids: ids}
}

// Generate returns the next run id.
//
// Implements ingest.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	if len(g.ids) == 0 {
		return fmt.Sprintf("test-run-%04d", g.n)
	}
	if g.n > len(g.ids) {
		return g.ids[len(g.ids)-1]
	}
	return g.ids[g.n-1]
}
