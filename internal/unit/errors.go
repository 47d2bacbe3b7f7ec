package unit

import "fmt"

// ManifestError reports a missing or unreadable manifest.
// The run proceeds with zero units.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// LineError describes one manifest line that was skipped.
type LineError struct {
	Line   int
	Text   string
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %q: %s", e.Line, e.Text, e.Reason)
}

// LoadError reports a unit that could not be loaded.
// Only that unit is skipped; the run continues.
type LoadError struct {
	// Location is the manifest location of the unit.
	Location string

	// Reason is a short machine-friendly description (e.g. "entry point missing").
	Reason string

	// Err is the underlying error, if any.
	Err error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load unit %s: %s: %v", e.Location, e.Reason, e.Err)
	}
	return fmt.Sprintf("load unit %s: %s", e.Location, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
