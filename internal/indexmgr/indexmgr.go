// Package indexmgr implements the index-table manager: one physical
// table per indexed field path, addressed through the
// indextablemappings table, with bulk inserts, per-document
// deletes, filtered search, and rebuild-time pruning of unused tables.
package indexmgr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docvault-db/docvault/internal/metrics"
	"github.com/docvault-db/docvault/internal/storage"
)

// Condition is a structured filter operator.
type Condition string

const (
	OpEqual        Condition = "="
	OpNotEqual     Condition = "!="
	OpLessThan     Condition = "<"
	OpLessEqual    Condition = "<="
	OpGreaterThan  Condition = ">"
	OpGreaterEqual Condition = ">="
	OpIsNull       Condition = "IS NULL"
	OpIsNotNull    Condition = "IS NOT NULL"
	OpContains     Condition = "CONTAINS"
	OpStartsWith   Condition = "STARTSWITH"
	OpEndsWith     Condition = "ENDSWITH"
	OpLike         Condition = "LIKE"
)

// Entry is one row to insert into a field's index table. Numeric is
// populated for integer/number leaves so range comparisons can run
// against a typed column instead of lexicographic text comparison.
type Entry struct {
	DocumentID string
	Position   *int
	Value      string
	Numeric    *float64
}

// Filter is one structured predicate against a single field's index
// table. Numeric, when set, routes comparison operators against the
// value_numeric column rather than the text value column.
type Filter struct {
	Condition Condition
	Value     string
	Numeric   *float64
}

// Manager owns the set of per-field index tables.
type Manager struct {
	store *storage.Store
}

// New returns a Manager backed by store.
func New(store *storage.Store) *Manager {
	return &Manager{store: store}
}

// EnsureTable returns the physical table name for fieldPath, creating
// the mapping and the table itself if this is the first time the path
// is indexed. Mappings are process-wide: two collections that both
// index "age" share one physical table, distinguished only by the
// document_id rows within it.
// Concurrent callers racing on the same path cannot create two
// mappings: the select happens inside the same transaction as the
// insert, and a unique-constraint failure on field_key causes a retry
// that picks up the winner's row.
func (m *Manager) EnsureTable(ctx context.Context, fieldPath string) (string, error) {
	fieldKey := fieldPath

	if name, ok, err := m.lookupMapping(ctx, fieldKey); err != nil {
		return "", err
	} else if ok {
		return name, nil
	}

	maxLen := m.store.Dialect().MaxIdentifierLength()
	tableName := storage.DeriveTableName(fieldKey, maxLen)
	created := false

	err := m.store.WithTx(ctx, func(tx *sql.Tx) error {
		// Re-check inside the transaction; another goroutine may have
		// inserted the mapping between our lookup and here.
		ph := m.store.Dialect().Placeholder
		row := tx.QueryRowContext(ctx, "SELECT table_name FROM indextablemappings WHERE field_key = "+ph(1), fieldKey)
		var existing string
		if err := row.Scan(&existing); err == nil {
			tableName = existing
			return nil
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		// Guard against a different field path sanitizing to the same
		// table name: if table_name is already taken, disambiguate.
		nameRow := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM indextablemappings WHERE table_name = "+ph(1), tableName)
		var count int
		if err := nameRow.Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			tableName = storage.DeriveTableNameWithCollisionSuffix(fieldKey, maxLen)
		}

		_, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO indextablemappings (id, field_key, table_name) VALUES (%s, %s, %s)", ph(1), ph(2), ph(3)),
			uuid.NewString(), fieldKey, tableName)
		if err == nil {
			created = true
		}
		return err
	})
	if err != nil {
		if name, ok, lookupErr := m.lookupMapping(ctx, fieldKey); lookupErr == nil && ok {
			tableName = name
		} else {
			return "", fmt.Errorf("indexmgr: ensure mapping for %s: %w", fieldPath, err)
		}
	}

	if err := m.store.CreateIndexTable(ctx, tableName); err != nil {
		return "", fmt.Errorf("indexmgr: create table for %s: %w", fieldPath, err)
	}
	if created {
		metrics.IndexTablesActive.Inc()
	}
	return tableName, nil
}

func (m *Manager) lookupMapping(ctx context.Context, fieldKey string) (string, bool, error) {
	ph := m.store.Dialect().Placeholder(1)
	row, err := m.store.QueryRow(ctx, "SELECT table_name FROM indextablemappings WHERE field_key = "+ph, fieldKey)
	if err != nil {
		return "", false, err
	}
	var name string
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("indexmgr: lookup mapping: %w", err)
	}
	return name, true, nil
}

// InsertValues bulk-inserts valuesByTable inside a single transaction;
// either every row across every table commits, or none do.
func (m *Manager) InsertValues(ctx context.Context, valuesByTable map[string][]Entry) error {
	if len(valuesByTable) == 0 {
		return nil
	}
	return m.store.WithTx(ctx, func(tx *sql.Tx) error {
		return InsertValuesTx(ctx, tx, m.store.Dialect(), valuesByTable)
	})
}

// InsertValuesTx is InsertValues against a transaction the caller
// already holds, so it can be combined with the document-row write and
// the labels/tags fan-out into one atomic commit.
func InsertValuesTx(ctx context.Context, tx *sql.Tx, dialect storage.Dialect, valuesByTable map[string][]Entry) error {
	ph := dialect.Placeholder
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for table, entries := range valuesByTable {
		q := fmt.Sprintf("INSERT INTO %s (id, document_id, position, value, value_numeric, created_utc) VALUES (%s, %s, %s, %s, %s, %s)",
			dialect.QuoteIdent(table), ph(1), ph(2), ph(3), ph(4), ph(5), ph(6))
		for _, e := range entries {
			var pos, numeric interface{}
			if e.Position != nil {
				pos = *e.Position
			}
			if e.Numeric != nil {
				numeric = *e.Numeric
			}
			if _, err := tx.ExecContext(ctx, q, uuid.NewString(), e.DocumentID, pos, e.Value, numeric, now); err != nil {
				return fmt.Errorf("indexmgr: insert into %s: %w", table, err)
			}
		}
	}
	return nil
}

// DeleteForDocument removes documentID's rows from tableName.
func (m *Manager) DeleteForDocument(ctx context.Context, tableName, documentID string) error {
	return m.store.WithTx(ctx, func(tx *sql.Tx) error {
		return DeleteForDocumentTx(ctx, tx, m.store.Dialect(), tableName, documentID)
	})
}

// DeleteForDocumentTx is DeleteForDocument against a transaction the
// caller already holds.
func DeleteForDocumentTx(ctx context.Context, tx *sql.Tx, dialect storage.Dialect, tableName, documentID string) error {
	ph := dialect.Placeholder(1)
	q := fmt.Sprintf("DELETE FROM %s WHERE document_id = %s", dialect.QuoteIdent(tableName), ph)
	if _, err := tx.ExecContext(ctx, q, documentID); err != nil {
		return fmt.Errorf("indexmgr: delete from %s: %w", tableName, err)
	}
	return nil
}

// Search translates one structured filter against tableName into a
// single parameterized statement over value, returning distinct
// document ids. tableName must already be sanitized (it always is,
// coming from EnsureTable/the mappings table).
func (m *Manager) Search(ctx context.Context, tableName string, f Filter) ([]string, error) {
	q := m.store.Dialect().QuoteIdent(tableName)
	ph := m.store.Dialect().Placeholder(1)

	var where string
	var args []interface{}

	// Range and equality comparisons against a numeric field use the
	// typed value_numeric column so "10" does not sort before "9"; every
	// other operator is inherently string-shaped and stays on value.
	col := "value"
	var cmpArg interface{} = f.Value
	if f.Numeric != nil {
		col = "value_numeric"
		cmpArg = *f.Numeric
	}

	switch f.Condition {
	case OpEqual:
		where, args = col+" = "+ph, []interface{}{cmpArg}
	case OpNotEqual:
		where, args = col+" != "+ph, []interface{}{cmpArg}
	case OpLessThan:
		where, args = col+" < "+ph, []interface{}{cmpArg}
	case OpLessEqual:
		where, args = col+" <= "+ph, []interface{}{cmpArg}
	case OpGreaterThan:
		where, args = col+" > "+ph, []interface{}{cmpArg}
	case OpGreaterEqual:
		where, args = col+" >= "+ph, []interface{}{cmpArg}
	case OpIsNull:
		where = "value IS NULL"
	case OpIsNotNull:
		where = "value IS NOT NULL"
	case OpContains:
		where, args = "value LIKE "+ph, []interface{}{"%" + escapeLike(f.Value) + "%"}
	case OpStartsWith:
		where, args = "value LIKE "+ph, []interface{}{escapeLike(f.Value) + "%"}
	case OpEndsWith:
		where, args = "value LIKE "+ph, []interface{}{"%" + escapeLike(f.Value)}
	case OpLike:
		where, args = "value LIKE "+ph, []interface{}{f.Value}
	default:
		return nil, fmt.Errorf("indexmgr: unsupported condition %q", f.Condition)
	}

	query := fmt.Sprintf("SELECT DISTINCT document_id FROM %s WHERE %s", q, where)
	rows, err := m.store.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("indexmgr: search %s: %w", tableName, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("indexmgr: scan search result: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("indexmgr: iterate search results: %w", err)
	}
	return ids, nil
}

// escapeLike escapes LIKE metacharacters in a user-supplied substring
// before it is embedded inside a wildcarded pattern.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// DropUnused drops the mapping and physical table for every field path
// in staleFieldPaths. Since IndexTableMapping is process-wide,
// it is the caller's job to decide that a path is safe to drop;
// DropUnused itself performs no cross-collection check. Its caller, the
// rebuild engine, passes the paths one collection no longer indexes and
// does not consult other collections either.
func (m *Manager) DropUnused(ctx context.Context, staleFieldPaths []string) (dropped int, err error) {
	for _, path := range staleFieldPaths {
		tableName, ok, lookupErr := m.lookupMapping(ctx, path)
		if lookupErr != nil {
			return dropped, lookupErr
		}
		if !ok {
			continue
		}
		if err := m.store.DropTable(ctx, tableName); err != nil {
			return dropped, err
		}
		ph := m.store.Dialect().Placeholder(1)
		if _, err := m.store.Exec(ctx, "DELETE FROM indextablemappings WHERE field_key = "+ph, path); err != nil {
			return dropped, fmt.Errorf("indexmgr: delete stale mapping %s: %w", path, err)
		}
		metrics.IndexTablesActive.Dec()
		dropped++
	}
	return dropped, nil
}

// TableForPath exposes the mapping lookup to callers outside the
// package (the rebuild engine, document lifecycle) that need to know
// whether a path is indexed without creating a table as a side effect.
func (m *Manager) TableForPath(ctx context.Context, fieldPath string) (string, bool, error) {
	return m.lookupMapping(ctx, fieldPath)
}

// AllMappedPaths returns every field path that currently has a physical
// index table, process-wide.
func (m *Manager) AllMappedPaths(ctx context.Context) ([]string, error) {
	rows, err := m.store.Query(ctx, "SELECT field_key FROM indextablemappings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("indexmgr: scan field_key: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("indexmgr: iterate mappings: %w", err)
	}
	return paths, nil
}

