// Package config holds the nested configuration structs for a docvault
// instance, modeled on the grouped-sub-struct Config used by the
// teacher's standalone database daemon.
package config

import "time"

// Dialect identifies which of the four supported relational backends a
// Store talks to.
type Dialect string

const (
	DialectSQLite    Dialect = "sqlite"
	DialectPostgres  Dialect = "postgres"
	DialectMySQL     Dialect = "mysql"
	DialectSQLServer Dialect = "sqlserver"
)

// Config is the top-level configuration for a Database instance.
type Config struct {
	Storage StorageConfig
	Pool    PoolConfig
	Content ContentConfig
	Lock    LockConfig
	Query   QueryConfig
	Rebuild RebuildConfig
}

// StorageConfig selects the relational backend and its connection string.
type StorageConfig struct {
	Dialect Dialect
	DSN     string

	// MigrationsPath is not read: Bootstrap always applies the
	// migrations embedded in the storage package.
	MigrationsPath string
}

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	// MaxConnections is the number of connections the pool hands out
	// concurrently. Default 10.
	MaxConnections int
}

// ContentConfig controls where document bodies are written.
type ContentConfig struct {
	// DocumentsDirectory is the root under which each collection gets
	// its own subdirectory. Default "./documents".
	DocumentsDirectory string
}

// LockConfig controls the advisory object-lock sweep.
type LockConfig struct {
	// ExpirationInterval is how long an ObjectLock may be held before a
	// sweep considers it stale. Default 60s.
	ExpirationInterval time.Duration

	// SweepInterval is how often the background sweep runs. Default 15s.
	SweepInterval time.Duration
}

// QueryConfig bounds query execution.
type QueryConfig struct {
	// MaxResultsCap defaults to 1000. It is not read: max_results is
	// clamped to the constant query.MaxResultsCap (1000).
	MaxResultsCap int
}

// RebuildConfig controls the index rebuild engine's concurrency.
type RebuildConfig struct {
	// Concurrency is the number of documents streamed through the
	// rebuild worker pool at once. Default: runtime.NumCPU().
	Concurrency int
}

// Default returns a Config with every field set to its documented default.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Dialect: DialectSQLite, DSN: "docvault.db"},
		Pool:    PoolConfig{MaxConnections: 10},
		Content: ContentConfig{DocumentsDirectory: "./documents"},
		Lock: LockConfig{
			ExpirationInterval: 60 * time.Second,
			SweepInterval:      15 * time.Second,
		},
		Query:   QueryConfig{MaxResultsCap: 1000},
		Rebuild: RebuildConfig{Concurrency: 0},
	}
}
