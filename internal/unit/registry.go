package unit

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ScriptExt is the extension a script unit must have.
	ScriptExt = ".go"

	// BuiltinPrefix marks a manifest line naming a catalog unit.
	BuiltinPrefix = "builtin:"

	// DefaultManifestName is the manifest file looked up in the base directory.
	DefaultManifestName = "units.txt"

	// maxLineBytes bounds a single manifest line.
	maxLineBytes = 64 * 1024
)

// Registry turns a manifest into validated unit locations.
type Registry struct {
	// BaseDir anchors relative manifest paths (and a relative manifest path).
	BaseDir string

	// Catalog resolves builtin entries. Nil means builtin lines are skipped.
	Catalog *Catalog

	// Logger receives one warning per skipped line. Nil uses slog.Default().
	Logger *slog.Logger
}

func (r *Registry) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Read opens the manifest at path and parses it.
//
// A missing or unreadable manifest returns no locations and a *ManifestError;
// callers log it and run with zero units. Bad lines are skipped, logged, and
// never turn into an error.
func (r *Registry) Read(path string) ([]Location, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.BaseDir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	defer f.Close()

	locs, _, err := r.Parse(f)
	if err != nil {
		return locs, &ManifestError{Path: path, Err: err}
	}
	return locs, nil
}

// Parse reads manifest text and returns the valid locations in manifest
// order, plus one LineError per skipped line. The returned error is only set
// when reading itself fails; locations parsed before the failure are kept.
func (r *Registry) Parse(rd io.Reader) ([]Location, []*LineError, error) {
	var (
		locs    []Location
		skipped []*LineError
		seen    = make(map[string]bool)
	)

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		loc, reason := r.resolve(lineNo, line)
		if reason == "" && seen[loc.String()] {
			reason = "duplicate of an earlier line"
		}
		if reason != "" {
			le := &LineError{Line: lineNo, Text: line, Reason: reason}
			skipped = append(skipped, le)
			r.logger().Warn("skipping manifest line", "line", lineNo, "entry", line, "reason", reason)
			continue
		}

		seen[loc.String()] = true
		locs = append(locs, loc)
	}

	if err := scanner.Err(); err != nil {
		return locs, skipped, err
	}
	return locs, skipped, nil
}

// resolve validates one non-comment line. It returns a non-empty reason
// when the line must be skipped.
func (r *Registry) resolve(lineNo int, line string) (Location, string) {
	if name, ok := strings.CutPrefix(line, BuiltinPrefix); ok {
		name = strings.TrimSpace(name)
		if r.Catalog == nil {
			return Location{}, "builtin units are not available"
		}
		if _, found := r.Catalog.Lookup(name); !found {
			return Location{}, "unknown builtin unit"
		}
		return Location{Line: lineNo, Builtin: name}, ""
	}

	path := line
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.BaseDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Location{}, "cannot resolve path: " + err.Error()
	}

	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Location{}, "file does not exist"
	case err != nil:
		return Location{}, "cannot stat file: " + err.Error()
	case info.IsDir():
		return Location{}, "is a directory"
	case filepath.Ext(abs) != ScriptExt:
		return Location{}, "not a " + ScriptExt + " file"
	}

	return Location{Line: lineNo, Path: abs}, ""
}
