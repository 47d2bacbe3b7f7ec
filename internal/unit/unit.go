package unit

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/roach88/harvest/internal/ir"
)

// CallFunc is the direct execution shape: it blocks until the unit's output
// is ready.
type CallFunc func(ctx context.Context) (any, error)

// AsyncFunc is the deferred execution shape: it starts the work and returns
// a channel that delivers exactly one Result.
type AsyncFunc func(ctx context.Context) <-chan Result

// Result is the outcome of a deferred unit.
type Result struct {
	Value any
	Err   error
}

// Unit is a loaded, ready-to-run collection unit.
// Exactly one of Call and Async is set.
type Unit struct {
	// Name is the display name (file stem or builtin name).
	Name string

	// Location is the manifest location the unit was loaded from.
	Location string

	// Namespace is the collision-free synthetic name of the unit.
	Namespace string

	Call  CallFunc
	Async AsyncFunc
}

// Deferred reports whether the unit uses the deferred execution shape.
func (u *Unit) Deferred() bool {
	return u.Async != nil
}

// Location is one validated manifest entry.
type Location struct {
	// Line is the 1-based manifest line the entry came from (0 if synthetic).
	Line int

	// Path is the absolute path of a script unit.
	Path string

	// Builtin is the catalog name of a builtin unit.
	Builtin string
}

// IsBuiltin reports whether the location names a catalog unit.
func (l Location) IsBuiltin() bool {
	return l.Builtin != ""
}

// Name returns the display name: the script's file stem or the builtin name.
func (l Location) Name() string {
	if l.IsBuiltin() {
		return l.Builtin
	}
	return strings.TrimSuffix(filepath.Base(l.Path), filepath.Ext(l.Path))
}

// String returns the location as it would appear in a manifest.
func (l Location) String() string {
	if l.IsBuiltin() {
		return BuiltinPrefix + l.Builtin
	}
	return l.Path
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Namespace derives the synthetic name a unit runs under.
//
// Format: "<prefix>_<sanitized name>_<8 hex chars>", where the hash covers the
// full location. Two scripts named fetch.go in different directories get
// different namespaces.
func (l Location) Namespace() string {
	prefix := "unit"
	if l.IsBuiltin() {
		prefix = "builtin"
	}
	stem := unsafeNameChars.ReplaceAllString(l.Name(), "_")
	sum := ir.ShortHash(ir.DomainNamespace, []byte(l.String()), 8)
	return prefix + "_" + stem + "_" + sum
}
