package normalize

import (
	"github.com/roach88/harvest/internal/ir"
	"github.com/roach88/harvest/internal/schema"
)

// Buckets maps a kind name to its records, in input order.
type Buckets map[string][]ir.Record

// Classify partitions records by kind tag.
//
// The tag is read from the schema's kind fields in order and matched exactly
// against the declared kinds. Every declared kind has an entry, possibly
// empty. Records whose tag is missing or unknown are not kept; their count is
// returned as unclassified.
func Classify(s *schema.Schema, records []ir.Record) (Buckets, int) {
	buckets := make(Buckets, len(s.Kinds))
	for _, k := range s.Kinds {
		buckets[k.Name] = nil
	}

	unclassified := 0
	for _, rec := range records {
		kind := rec.Kind(s.KindFields)
		if _, ok := buckets[kind]; !ok {
			unclassified++
			continue
		}
		buckets[kind] = append(buckets[kind], rec)
	}
	return buckets, unclassified
}
