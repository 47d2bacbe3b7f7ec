package unit

import (
	"fmt"
	"slices"
	"sync"
)

// Builtins is the process-wide catalog that init functions register into.
var Builtins = NewCatalog()

// Entry is one registered builtin unit. Exactly one field is set.
type Entry struct {
	Call  CallFunc
	Async AsyncFunc
}

// Catalog holds compile-time registered units, addressed from the manifest
// as "builtin:<name>".
//
// Thread-safety: Catalog is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]Entry)}
}

// Register adds a unit with the direct execution shape.
// Returns an error if name is empty, already registered, or fn is nil.
func (c *Catalog) Register(name string, fn CallFunc) error {
	if fn == nil {
		return fmt.Errorf("register %q: nil function", name)
	}
	return c.add(name, Entry{Call: fn})
}

// RegisterAsync adds a unit with the deferred execution shape.
func (c *Catalog) RegisterAsync(name string, fn AsyncFunc) error {
	if fn == nil {
		return fmt.Errorf("register %q: nil function", name)
	}
	return c.add(name, Entry{Async: fn})
}

// MustRegister is like Register but panics on error.
// Use only from init functions or tests.
func (c *Catalog) MustRegister(name string, fn CallFunc) {
	if err := c.Register(name, fn); err != nil {
		panic(err)
	}
}

func (c *Catalog) add(name string, e Entry) error {
	if name == "" || unsafeNameChars.MatchString(name) {
		return fmt.Errorf("register %q: name must be non-empty [A-Za-z0-9_]", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.entries[name]; dup {
		return fmt.Errorf("register %q: already registered", name)
	}
	c.entries[name] = e
	return nil
}

// Lookup returns the entry registered under name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// Names returns all registered names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
