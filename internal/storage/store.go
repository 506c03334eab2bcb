package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docvault-db/docvault/internal/config"
	"github.com/docvault-db/docvault/internal/logger"
)

// Store wraps a *sql.DB and its Dialect, bounding concurrent use through
// a connPool and giving the rest of docvault a dialect-agnostic surface
// for parameterized execution and index-table DDL.
//
// Store never builds SQL text from caller-supplied values; only
// identifiers that have already passed through SanitizeIdentifier may be
// interpolated. All data values are bound as driver args.
type Store struct {
	db      *sql.DB
	dialect Dialect
	pool    *connPool
	log     *logger.Logger
}

// Open opens the database/sql handle for cfg.Storage.Dialect, verifies
// connectivity with Ping, and returns a Store bounded by cfg.Pool.
func Open(ctx context.Context, cfg config.StorageConfig, poolCfg config.PoolConfig, log *logger.Logger) (*Store, error) {
	dialect, err := ForName(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", cfg.Dialect, err)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Store{
		db:      db,
		dialect: dialect,
		pool:    newConnPool(poolCfg.MaxConnections),
		log:     log,
	}, nil
}

// Dialect returns the Store's Dialect implementation.
func (s *Store) Dialect() Dialect { return s.dialect }

// DB returns the underlying *sql.DB, for components (golang-migrate,
// ants-pooled rebuild workers) that need direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying *sql.DB.
func (s *Store) Close() error { return s.db.Close() }

// Query runs a parameterized read, bounded by the connection pool.
func (s *Store) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if err := s.pool.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.pool.Release()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query: %w", err)
	}
	return rows, nil
}

// QueryRow runs a parameterized single-row read, bounded by the pool.
func (s *Store) QueryRow(ctx context.Context, query string, args ...interface{}) (*sql.Row, error) {
	if err := s.pool.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.pool.Release()
	return s.db.QueryRowContext(ctx, query, args...), nil
}

// Exec runs a parameterized write, bounded by the pool.
func (s *Store) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := s.pool.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.pool.Release()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: exec: %w", err)
	}
	return res, nil
}

// WithTx acquires a pool slot, begins a transaction, and runs fn;
// fn's error rolls the transaction back, otherwise it is committed.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	if err := s.pool.Acquire(ctx); err != nil {
		return err
	}
	defer s.pool.Release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warn("storage: rollback after error failed: %v (original: %v)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit tx: %w", err)
	}
	return nil
}

// TableExists reports whether tableName (already sanitized) exists.
func (s *Store) TableExists(ctx context.Context, tableName string) (bool, error) {
	q, args := s.existsQuery(tableName)
	row, err := s.QueryRow(ctx, q, args...)
	if err != nil {
		return false, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("storage: check table existence: %w", err)
	}
	return n > 0, nil
}

func (s *Store) existsQuery(tableName string) (string, []interface{}) {
	switch s.dialect.Name() {
	case config.DialectPostgres:
		return "SELECT COUNT(*) FROM information_schema.tables WHERE table_name = " + s.dialect.Placeholder(1), []interface{}{tableName}
	case config.DialectMySQL:
		return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", []interface{}{tableName}
	case config.DialectSQLServer:
		return "SELECT COUNT(*) FROM sys.tables WHERE name = @p1", []interface{}{tableName}
	default: // sqlite
		return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", []interface{}{tableName}
	}
}

// CreateIndexTable issues the dialect's DDL to create tableName
// (already sanitized by the caller via SanitizeIdentifier).
func (s *Store) CreateIndexTable(ctx context.Context, tableName string) error {
	for _, stmt := range s.dialect.CreateIndexTableDDL(tableName) {
		if _, err := s.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("storage: create index table %s: %w", tableName, err)
		}
	}
	return nil
}

// DropTable issues the dialect's DDL to drop tableName.
func (s *Store) DropTable(ctx context.Context, tableName string) error {
	if _, err := s.Exec(ctx, s.dialect.DropTableDDL(tableName)); err != nil {
		return fmt.Errorf("storage: drop table %s: %w", tableName, err)
	}
	return nil
}
