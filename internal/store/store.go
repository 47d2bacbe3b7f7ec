package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/harvest/internal/schema"
)

// RunsTable is the run ledger. Truncation never touches it.
const RunsTable = "ingest_runs"

// Table binds an entity kind to the table that holds it.
type Table struct {
	Kind string
	Name string
}

// TablesFor returns the tables declared by a schema, in kind order.
func TablesFor(s *schema.Schema) []Table {
	tables := make([]Table, len(s.Kinds))
	for i, k := range s.Kinds {
		tables[i] = Table{Kind: k.Name, Name: k.Table}
	}
	return tables
}

// Store is a handle on the snapshot database.
//
// Create one per run with Open and release it with Close.
type Store struct {
	db      *sql.DB
	dialect dialect

	// insertHook, when set, runs before each kind's inserts inside the
	// transaction. Tests use it to inject failures.
	insertHook func(kind string) error
}

// Open connects to the database with the given driver and DSN.
//
// For sqlite3 the DSN is a file path. The connection pool is limited to
// one connection and these pragmas are applied:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// For pgx the DSN is a Postgres connection string or URL.
//
// Tables are not created here; Commit ensures them inside its transaction.
// Failures are reported as *PersistenceError with Step "open".
func Open(driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, &PersistenceError{Step: StepOpen, Err: err}
	}

	db, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, &PersistenceError{Step: StepOpen, Err: fmt.Errorf("failed to open database: %w", err)}
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &PersistenceError{Step: StepOpen, Err: fmt.Errorf("failed to connect to database: %w", err)}
	}

	if d.name == DriverSQLite {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, &PersistenceError{Step: StepOpen, Err: fmt.Errorf("failed to apply pragmas: %w", err)}
		}
	}

	return &Store{db: db, dialect: d}, nil
}

// OpenSQLite opens a SQLite database at path.
func OpenSQLite(path string) (*Store, error) {
	return Open(DriverSQLite, path)
}

// Close closes the database connection.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// EnsureSchema creates the entity tables and the run ledger if missing.
func (s *Store) EnsureSchema(ctx context.Context, tables []Table) error {
	return ensureSchema(ctx, s.db, s.dialect, tables)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureSchema(ctx context.Context, db execer, d dialect, tables []Table) error {
	for _, t := range tables {
		if !validIdent(t.Name) {
			return fmt.Errorf("invalid table name %q", t.Name)
		}
		if _, err := db.ExecContext(ctx, d.createEntityTable(t.Name)); err != nil {
			return fmt.Errorf("create %s: %w", t.Name, err)
		}
	}
	if _, err := db.ExecContext(ctx, d.createRunsTable()); err != nil {
		return fmt.Errorf("create %s: %w", RunsTable, err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
