package storage

import (
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // database/sql driver, registers as "sqlserver"

	"github.com/docvault-db/docvault/internal/config"
)

type sqlServerDialect struct{}

func (sqlServerDialect) Name() config.Dialect { return config.DialectSQLServer }
func (sqlServerDialect) DriverName() string   { return "sqlserver" }

func (sqlServerDialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (sqlServerDialect) QuoteIdent(ident string) string { return "[" + ident + "]" }

func (sqlServerDialect) LimitOffset(limit, offset int) string {
	// SQL Server requires an ORDER BY for OFFSET/FETCH; callers always
	// supply one before appending this clause.
	return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
}

func (sqlServerDialect) MaxIdentifierLength() int { return 128 }

func (d sqlServerDialect) CreateIndexTableDDL(tableName string) []string {
	q := d.QuoteIdent(tableName)
	return []string{
		fmt.Sprintf(`IF NOT EXISTS (SELECT 1 FROM sys.tables WHERE name = '%s')
			CREATE TABLE %s (
				id NVARCHAR(36) NOT NULL PRIMARY KEY,
				document_id NVARCHAR(36) NOT NULL,
				position INT,
				value NVARCHAR(1024),
				value_numeric FLOAT,
				created_utc NVARCHAR(40) NOT NULL
			)`, tableName, q),
		fmt.Sprintf(`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = '%s_doc_ix')
			CREATE INDEX %s ON %s (document_id)`, tableName, d.QuoteIdent(tableName+"_doc_ix"), q),
		fmt.Sprintf(`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = '%s_val_ix')
			CREATE INDEX %s ON %s (value)`, tableName, d.QuoteIdent(tableName+"_val_ix"), q),
	}
}

func (d sqlServerDialect) DropTableDDL(tableName string) string {
	return fmt.Sprintf("IF OBJECT_ID('%s', 'U') IS NOT NULL DROP TABLE %s", tableName, d.QuoteIdent(tableName))
}

func (sqlServerDialect) migrationDir() string { return "migrations/sqlserver" }
