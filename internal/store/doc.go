// Package store persists canonical records as an atomic snapshot.
//
// Each entity kind has its own table with the same layout:
//
//	id          TEXT PRIMARY KEY   deterministic identifier
//	name        VARCHAR(256)       display name, may be NULL
//	data        JSON               canonical JSON of the attribute set
//	created_at  TIMESTAMP          ingestion time of the run
//
// An ingest_runs ledger records every committed run. Truncation never
// touches it.
//
// # Drivers
//
//   - sqlite3 (github.com/mattn/go-sqlite3): the default and the test driver
//   - pgx (github.com/jackc/pgx/v5/stdlib): production Postgres
//
// The two differ only in placeholders, column types and how tables are
// emptied; see dialect.go.
//
// # Atomicity
//
// Commit runs ensure-schema, truncate, every insert and the ledger row in one
// transaction. Any failure rolls the whole transaction back and returns a
// *PersistenceError; readers never observe a partial snapshot. Inserts are
// upserts on id, so loading the same batch twice without truncation leaves
// the tables unchanged.
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
