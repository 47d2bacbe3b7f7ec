package normalize

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/harvest/internal/ir"
	"github.com/roach88/harvest/internal/schema"
)

// Stats counts what normalization did to the input.
type Stats struct {
	Input        int            `json:"input"`
	Unclassified int            `json:"unclassified"`
	Duplicates   int            `json:"duplicates"`
	Collisions   int            `json:"identity_collisions"`
	Tiers        map[Tier]int   `json:"tiers"`
	PerKind      map[string]int `json:"per_kind"`
}

// Normalizer chains classification, deduplication, identity and projection.
type Normalizer struct {
	schema    *schema.Schema
	resolver  *Resolver
	projector Projector
	now       func() time.Time
	logger    *slog.Logger
}

// NewNormalizer creates a Normalizer. now supplies the ingestion timestamp
// shared by every record of a call; nil means time.Now.
func NewNormalizer(s *schema.Schema, now func() time.Time, logger *slog.Logger) *Normalizer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		schema:   s,
		resolver: NewResolver(s.Identity),
		now:      now,
		logger:   logger,
	}
}

// Normalize turns raw records into a batch of canonical records.
//
// Within one kind every identifier appears once. When two distinct records
// resolve to the same identifier the later one replaces the earlier one in
// place, matching what an upsert would leave behind, and the collision is
// counted and logged.
func (n *Normalizer) Normalize(records []ir.Record) (*ir.Batch, Stats, error) {
	stats := Stats{
		Input:   len(records),
		Tiers:   map[Tier]int{TierStrong: 0, TierNameLocation: 0, TierContent: 0},
		PerKind: make(map[string]int, len(n.schema.Kinds)),
	}
	ingestedAt := n.now().UTC()

	buckets, unclassified := Classify(n.schema, records)
	stats.Unclassified = unclassified
	if unclassified > 0 {
		n.logger.Debug("dropped unclassified records", "count", unclassified)
	}

	batch := ir.NewBatch(n.schema.KindNames())
	for i := range n.schema.Kinds {
		kind := &n.schema.Kinds[i]

		unique, dups, err := Dedup(buckets[kind.Name])
		if err != nil {
			return nil, stats, fmt.Errorf("kind %s: %w", kind.Name, err)
		}
		stats.Duplicates += dups

		index := make(map[string]int, len(unique))
		var out []ir.CanonicalRecord
		for _, rec := range unique {
			id, tier, err := n.resolver.Resolve(kind.Name, rec)
			if err != nil {
				return nil, stats, fmt.Errorf("kind %s: %w", kind.Name, err)
			}
			stats.Tiers[tier]++

			name, attrs := n.projector.Project(kind, rec)
			cr := ir.CanonicalRecord{
				Kind:       kind.Name,
				ID:         id,
				Name:       name,
				Attributes: attrs,
				IngestedAt: ingestedAt,
			}

			if at, dup := index[id]; dup {
				stats.Collisions++
				n.logger.Warn("identifier collision, later record wins",
					"kind", kind.Name, "id", id, "tier", string(tier))
				out[at] = cr
				continue
			}
			index[id] = len(out)
			out = append(out, cr)
		}

		batch.Records[kind.Name] = out
		stats.PerKind[kind.Name] = len(out)
	}

	return batch, stats, nil
}
