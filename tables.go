package docvault

import (
	"context"
	"database/sql"
	"fmt"
)

// TableInfo is one row of the process-wide field-path → physical table
// mapping.
type TableInfo struct {
	FieldPath string
	TableName string
}

// ListIndexTables returns every currently mapped field path and its
// physical table name, ordered by field path.
func (d *Database) ListIndexTables(ctx context.Context) ([]TableInfo, error) {
	rows, err := d.store.Query(ctx, "SELECT field_key, table_name FROM indextablemappings ORDER BY field_key")
	if err != nil {
		return nil, ErrStorageFailure(err, "list index tables")
	}
	defer rows.Close()
	var out []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.FieldPath, &t.TableName); err != nil {
			return nil, ErrStorageFailure(err, "scan index table mapping")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// IndexEntryInfo is one row of a field's physical index table.
type IndexEntryInfo struct {
	ID           string
	DocumentID   string
	Position     *int
	Value        string
	ValueNumeric *float64
	CreatedUTC   string
}

// TableEntries returns up to limit rows of tableName starting after
// skip, plus the table's total row count. tableName must be one of the
// names ListIndexTables reports; anything else surfaces as NotFound
// rather than running an unvalidated identifier through a query.
func (d *Database) TableEntries(ctx context.Context, tableName string, skip, limit int) ([]IndexEntryInfo, int, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	if skip < 0 {
		skip = 0
	}

	if !d.tableIsMapped(ctx, tableName) {
		return nil, 0, ErrNotFound("index table %q not found", tableName)
	}

	quoted := d.store.Dialect().QuoteIdent(tableName)

	// Pagination is applied in memory, the same way ListDocuments/Search
	// paginate, rather than with LIMIT/OFFSET: SQL Server's dialect needs
	// a different clause shape and this keeps one path across all four.
	query := fmt.Sprintf("SELECT id, document_id, position, value, value_numeric, created_utc FROM %s ORDER BY created_utc", quoted)
	rows, err := d.store.Query(ctx, query)
	if err != nil {
		return nil, 0, ErrStorageFailure(err, "query entries for %s", tableName)
	}
	defer rows.Close()

	var all []IndexEntryInfo
	for rows.Next() {
		var e IndexEntryInfo
		var pos sql.NullInt64
		var numeric sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.DocumentID, &pos, &e.Value, &numeric, &e.CreatedUTC); err != nil {
			return nil, 0, ErrStorageFailure(err, "scan entry in %s", tableName)
		}
		if pos.Valid {
			v := int(pos.Int64)
			e.Position = &v
		}
		if numeric.Valid {
			v := numeric.Float64
			e.ValueNumeric = &v
		}
		all = append(all, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, ErrStorageFailure(err, "iterate entries for %s", tableName)
	}

	total := len(all)
	if skip > total {
		skip = total
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return all[skip:end], total, nil
}

func (d *Database) tableIsMapped(ctx context.Context, tableName string) bool {
	ph := d.store.Dialect().Placeholder(1)
	row, err := d.store.QueryRow(ctx, "SELECT 1 FROM indextablemappings WHERE table_name = "+ph, tableName)
	if err != nil {
		return false
	}
	var one int
	return row.Scan(&one) == nil
}
