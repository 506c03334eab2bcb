package storage

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql" // database/sql driver, registers as "mysql"

	"github.com/docvault-db/docvault/internal/config"
)

type mysqlDialect struct{}

func (mysqlDialect) Name() config.Dialect { return config.DialectMySQL }
func (mysqlDialect) DriverName() string   { return "mysql" }

func (mysqlDialect) Placeholder(n int) string { return "?" }

func (mysqlDialect) QuoteIdent(ident string) string { return "`" + ident + "`" }

func (mysqlDialect) LimitOffset(limit, offset int) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

func (mysqlDialect) MaxIdentifierLength() int { return 64 }

func (d mysqlDialect) CreateIndexTableDDL(tableName string) []string {
	q := d.QuoteIdent(tableName)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(36) PRIMARY KEY,
			document_id VARCHAR(36) NOT NULL,
			position INT,
			value VARCHAR(1024),
			value_numeric DOUBLE,
			created_utc VARCHAR(40) NOT NULL,
			INDEX %s (document_id),
			INDEX %s (value)
		)`, q, d.QuoteIdent(tableName+"_doc_ix"), d.QuoteIdent(tableName+"_val_ix")),
	}
}

func (d mysqlDialect) DropTableDDL(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdent(tableName))
}

func (mysqlDialect) migrationDir() string { return "migrations/mysql" }
