// Package storage implements the relational storage layer:
// parameterized statement execution, a bounded
// connection pool, identifier sanitization, and per-dialect DDL
// templates. Dialect differences are encapsulated entirely behind the
// Dialect interface; the rest of docvault speaks one abstract dialect.
package storage

import (
	"embed"
	"fmt"

	"github.com/docvault-db/docvault/internal/config"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql migrations/mysql/*.sql migrations/sqlserver/*.sql
var migrationFS embed.FS

// Dialect hides the SQL-text differences between the four supported
// relational backends behind a small interface. Every value a query
// carries still flows through parameterized statements; Dialect only
// changes how placeholders, identifiers, and DDL are rendered.
type Dialect interface {
	// Name identifies the dialect (used to pick the golang-migrate driver
	// and the embedded migration subdirectory).
	Name() config.Dialect

	// DriverName is the database/sql driver name registered for this dialect.
	DriverName() string

	// Placeholder renders the nth (1-based) bound parameter in a SQL
	// statement, e.g. "?" for SQLite/MySQL, "$1" for PostgreSQL, "@p1"
	// for SQL Server.
	Placeholder(n int) string

	// QuoteIdent quotes an already-sanitized identifier for safe
	// interpolation into DDL text.
	QuoteIdent(ident string) string

	// LimitOffset renders a LIMIT/OFFSET (or dialect equivalent) clause.
	LimitOffset(limit, offset int) string

	// MaxIdentifierLength is the identifier length limit enforced by the
	// dialect (used to bound derived index-table names).
	MaxIdentifierLength() int

	// CreateIndexTableDDL renders the CREATE TABLE statement for a
	// dynamically named per-field index table.
	CreateIndexTableDDL(tableName string) []string

	// DropTableDDL renders the statement(s) needed to drop tableName.
	DropTableDDL(tableName string) string

	// migrationDir is the embedded migrations subdirectory for this dialect.
	migrationDir() string
}

// ForName returns the Dialect implementation for name.
func ForName(name config.Dialect) (Dialect, error) {
	switch name {
	case config.DialectSQLite:
		return sqliteDialect{}, nil
	case config.DialectPostgres:
		return postgresDialect{}, nil
	case config.DialectMySQL:
		return mysqlDialect{}, nil
	case config.DialectSQLServer:
		return sqlServerDialect{}, nil
	default:
		return nil, fmt.Errorf("storage: unknown dialect %q", name)
	}
}
