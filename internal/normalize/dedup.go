package normalize

import (
	"fmt"

	"github.com/roach88/harvest/internal/ir"
)

// Dedup removes records whose canonical serialization equals that of an
// earlier record. The first occurrence wins and input order is kept.
//
// Field order never matters; 5 and 5.0 are equal; strings compare after NFC
// normalization.
func Dedup(records []ir.Record) ([]ir.Record, int, error) {
	seen := make(map[string]struct{}, len(records))
	out := make([]ir.Record, 0, len(records))

	for i, rec := range records {
		key, err := ir.MarshalCanonical(rec)
		if err != nil {
			return nil, 0, fmt.Errorf("dedup record %d: %w", i, err)
		}
		if _, dup := seen[string(key)]; dup {
			continue
		}
		seen[string(key)] = struct{}{}
		out = append(out, rec)
	}
	return out, len(records) - len(out), nil
}
