package ir

import "time"

// CanonicalRecord is a fully projected, identifier-bearing record.
// It is the unit of persistence: one row in the table of its kind.
type CanonicalRecord struct {
	// Kind is the entity kind (bucket) the record was classified into.
	Kind string `json:"kind"`

	// ID is the deterministic identifier, unique within the kind's table.
	ID string `json:"id"`

	// Name is the short display name, empty when the record has none.
	Name string `json:"name,omitempty"`

	// Attributes holds the kind's fixed attribute set.
	Attributes map[string]any `json:"attributes"`

	// IngestedAt is the run's ingestion timestamp, shared by every record of a run.
	IngestedAt time.Time `json:"ingested_at"`
}

// Batch is the set of canonical records committed by one run.
// Kinds fixes the order in which buckets are written.
type Batch struct {
	Kinds   []string
	Records map[string][]CanonicalRecord
}

// NewBatch creates an empty batch for the given kinds.
func NewBatch(kinds []string) *Batch {
	b := &Batch{
		Kinds:   append([]string(nil), kinds...),
		Records: make(map[string][]CanonicalRecord, len(kinds)),
	}
	for _, k := range kinds {
		b.Records[k] = nil
	}
	return b
}

// Add appends rec to its kind's list.
func (b *Batch) Add(rec CanonicalRecord) {
	b.Records[rec.Kind] = append(b.Records[rec.Kind], rec)
}

// Count returns the number of records of one kind.
func (b *Batch) Count(kind string) int {
	return len(b.Records[kind])
}

// Counts returns per-kind record counts for every kind of the batch.
func (b *Batch) Counts() map[string]int {
	out := make(map[string]int, len(b.Kinds))
	for _, k := range b.Kinds {
		out[k] = len(b.Records[k])
	}
	return out
}

// Total returns the number of records across all kinds.
func (b *Batch) Total() int {
	n := 0
	for _, recs := range b.Records {
		n += len(recs)
	}
	return n
}
