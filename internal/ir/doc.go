// Package ir provides the record types shared by every stage of the harvest
// ingestion pipeline.
//
// This package imports nothing internal. Units produce raw [Record] values,
// the normalize stage turns them into [CanonicalRecord] values grouped in a
// [Batch], and the store persists the batch.
//
// Key design constraints:
//   - Raw records are normalized to a JSON value tree before anything else
//     looks at them (see [Normalize]).
//   - Canonical serialization is the only input to deduplication keys and
//     content hashes (see [MarshalCanonical]).
//   - Hashes use SHA-256 with domain separation (see [HashWithDomain]).
//   - All JSON tags use snake_case.
package ir
