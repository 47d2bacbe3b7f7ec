// Package normalize turns the merged unit output into canonical records.
//
// The stages run in a fixed order on a single goroutine:
//
//  1. Classify partitions raw records by their kind tag.
//  2. Dedup drops exact duplicates within each bucket, keeping the first.
//  3. Resolver derives each record's identifier (strong, name+location or
//     content tier).
//  4. Projector maps source fields onto the kind's attribute table.
//
// Normalizer chains the stages and produces the ir.Batch handed to the store.
// Everything here is deterministic: the same input records produce the same
// identifiers, names and attributes on every run.
package normalize
