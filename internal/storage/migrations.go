package storage

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/database/sqlserver"
	migrateiofs "github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/docvault-db/docvault/internal/config"
)

// Bootstrap applies the embedded migrations for s's dialect, creating
// the eleven fixed base tables (collections, documents, schemas, ...)
// if they do not already exist. It is safe to call on every startup:
// golang-migrate no-ops when the schema is already current.
//
// golang-migrate's per-dialect database driver only cares that it
// receives an already-open *sql.DB; modernc.org/sqlite's pure-Go driver
// works with the sqlite3 database driver package for exactly this
// reason, despite that package's name suggesting the cgo driver.
func (s *Store) Bootstrap() error {
	sub, err := fs.Sub(migrationFS, s.dialect.migrationDir())
	if err != nil {
		return fmt.Errorf("storage: migrations subtree for %s: %w", s.dialect.Name(), err)
	}
	source, err := migrateiofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("storage: load embedded migrations: %w", err)
	}

	dbDriver, err := s.migrateDriver()
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, string(s.dialect.Name()), dbDriver)
	if err != nil {
		return fmt.Errorf("storage: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storage: apply migrations: %w", err)
	}
	return nil
}

func (s *Store) migrateDriver() (database.Driver, error) {
	switch s.dialect.Name() {
	case config.DialectPostgres:
		return postgres.WithInstance(s.db, &postgres.Config{})
	case config.DialectMySQL:
		return mysql.WithInstance(s.db, &mysql.Config{})
	case config.DialectSQLServer:
		return sqlserver.WithInstance(s.db, &sqlserver.Config{})
	default: // sqlite
		return sqlite3.WithInstance(s.db, &sqlite3.Config{})
	}
}
