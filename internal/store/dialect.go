package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdent reports whether s can be used unquoted as a table name.
func validIdent(s string) bool {
	return identPattern.MatchString(s)
}

// dialect holds the SQL that differs between drivers.
type dialect struct {
	name     string
	jsonType string
	timeType string
	boolType string
	numbered bool // $1, $2 ... instead of ?
}

var (
	sqliteDialect = dialect{
		name:     DriverSQLite,
		jsonType: "TEXT",
		timeType: "TIMESTAMP",
		boolType: "INTEGER",
	}
	postgresDialect = dialect{
		name:     DriverPostgres,
		jsonType: "JSONB",
		timeType: "TIMESTAMPTZ",
		boolType: "BOOLEAN",
		numbered: true,
	}
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite, "sqlite":
		return sqliteDialect, nil
	case DriverPostgres, "postgres", "postgresql":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported driver %q (want %s or %s)", driver, DriverSQLite, DriverPostgres)
	}
}

// placeholders returns n bind parameters separated by commas.
func (d dialect) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		if d.numbered {
			parts[i] = "$" + strconv.Itoa(i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

func (d dialect) createEntityTable(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	name VARCHAR(256),
	data %s NOT NULL,
	created_at %s NOT NULL
)`, table, d.jsonType, d.timeType)
}

func (d dialect) createRunsTable() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT PRIMARY KEY,
	started_at %s NOT NULL,
	finished_at %s NOT NULL,
	truncated %s NOT NULL,
	counts %s NOT NULL,
	pipeline_version TEXT NOT NULL
)`, RunsTable, d.timeType, d.timeType, d.boolType, d.jsonType)
}

// truncate returns the statements that empty tables.
func (d dialect) truncate(tables []string) []string {
	if len(tables) == 0 {
		return nil
	}
	if d.numbered {
		return []string{"TRUNCATE TABLE " + strings.Join(tables, ", ")}
	}
	stmts := make([]string, len(tables))
	for i, t := range tables {
		stmts[i] = "DELETE FROM " + t
	}
	return stmts
}

func (d dialect) upsert(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (id, name, data, created_at)
VALUES (%s)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	data = excluded.data,
	created_at = excluded.created_at`, table, d.placeholders(4))
}

func (d dialect) insertRun() string {
	return fmt.Sprintf(`INSERT INTO %s (run_id, started_at, finished_at, truncated, counts, pipeline_version)
VALUES (%s)`, RunsTable, d.placeholders(6))
}

func (d dialect) boolValue(b bool) any {
	if d.numbered {
		return b
	}
	if b {
		return 1
	}
	return 0
}
