package storage

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver, registers as "pgx"

	"github.com/docvault-db/docvault/internal/config"
)

type postgresDialect struct{}

func (postgresDialect) Name() config.Dialect { return config.DialectPostgres }
func (postgresDialect) DriverName() string   { return "pgx" }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) QuoteIdent(ident string) string { return `"` + ident + `"` }

func (postgresDialect) LimitOffset(limit, offset int) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

func (postgresDialect) MaxIdentifierLength() int { return 63 }

func (d postgresDialect) CreateIndexTableDDL(tableName string) []string {
	q := d.QuoteIdent(tableName)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			position INTEGER,
			value TEXT,
			value_numeric DOUBLE PRECISION,
			created_utc TEXT NOT NULL
		)`, q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (document_id)`, d.QuoteIdent(tableName+"_doc_ix"), q),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (value)`, d.QuoteIdent(tableName+"_val_ix"), q),
	}
}

func (d postgresDialect) DropTableDDL(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdent(tableName))
}

func (postgresDialect) migrationDir() string { return "migrations/postgres" }
