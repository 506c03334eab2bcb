package storage

import (
	"fmt"

	_ "modernc.org/sqlite" // database/sql driver, registers as "sqlite"

	"github.com/docvault-db/docvault/internal/config"
)

type sqliteDialect struct{}

func (sqliteDialect) Name() config.Dialect { return config.DialectSQLite }
func (sqliteDialect) DriverName() string   { return "sqlite" }

func (sqliteDialect) Placeholder(n int) string { return "?" }

func (sqliteDialect) QuoteIdent(ident string) string { return `"` + ident + `"` }

func (sqliteDialect) LimitOffset(limit, offset int) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

func (sqliteDialect) MaxIdentifierLength() int { return 63 }

func (d sqliteDialect) CreateIndexTableDDL(tableName string) []string {
	q := d.QuoteIdent(tableName)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			position INTEGER,
			value TEXT,
			value_numeric REAL,
			created_utc TEXT NOT NULL
		)`, q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (document_id)`, d.QuoteIdent(tableName+"_doc_ix"), q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (value)`, d.QuoteIdent(tableName+"_val_ix"), q),
	}
}

func (d sqliteDialect) DropTableDDL(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdent(tableName))
}

func (sqliteDialect) migrationDir() string { return "migrations/sqlite" }
