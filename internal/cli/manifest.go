package cli

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/harvest/internal/unit"
)

func catalogOrBuiltins(c *unit.Catalog) *unit.Catalog {
	if c != nil {
		return c
	}
	return unit.Builtins
}

// readManifest parses the manifest and returns the listing together with the
// locations themselves. A missing manifest is an error here, unlike in a run.
func readManifest(baseDir, manifest string, cat *unit.Catalog, logger *slog.Logger) (*UnitsResult, []unit.Location, error) {
	path := manifest
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reg := &unit.Registry{BaseDir: baseDir, Catalog: cat, Logger: logger}
	locs, skipped, err := reg.Parse(f)
	if err != nil {
		return nil, nil, err
	}

	result := &UnitsResult{
		Manifest: path,
		Units:    make([]UnitEntry, len(locs)),
		Skipped:  make([]SkippedLine, len(skipped)),
	}
	for i, loc := range locs {
		result.Units[i] = UnitEntry{
			Line:      loc.Line,
			Name:      loc.Name(),
			Namespace: loc.Namespace(),
			Location:  loc.String(),
		}
	}
	for i, le := range skipped {
		result.Skipped[i] = SkippedLine{Line: le.Line, Entry: le.Text, Reason: le.Reason}
	}
	return result, locs, nil
}
