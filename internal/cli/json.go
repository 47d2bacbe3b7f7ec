package cli

import (
	"encoding/json"
	"io"
)

// writeJSON writes v indented, as the test and units commands do.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
