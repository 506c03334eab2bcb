package docvault

import (
	"context"
	"database/sql"
	"errors"
)

// SchemaElementInfo is one ordered member of an interned schema,
// exposed to callers outside the schema registry itself.
type SchemaElementInfo struct {
	Path     string
	DataType string
	Nullable bool
	Position int
}

// ListSchemas returns every interned schema, ordered by creation time.
func (d *Database) ListSchemas(ctx context.Context) ([]SchemaInfo, error) {
	rows, err := d.store.Query(ctx, "SELECT id, name, hash, created_utc, last_update_utc FROM schemas ORDER BY created_utc")
	if err != nil {
		return nil, ErrStorageFailure(err, "list schemas")
	}
	defer rows.Close()

	var out []SchemaInfo
	for rows.Next() {
		var s SchemaInfo
		var name sql.NullString
		if err := rows.Scan(&s.ID, &name, &s.Hash, &s.CreatedUTC, &s.LastUpdateUTC); err != nil {
			return nil, ErrStorageFailure(err, "scan schema")
		}
		s.Name = name.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, ErrStorageFailure(err, "iterate schemas")
	}
	return out, nil
}

// GetSchema loads one schema by id.
func (d *Database) GetSchema(ctx context.Context, id string) (SchemaInfo, error) {
	ph := d.store.Dialect().Placeholder(1)
	row, err := d.store.QueryRow(ctx, "SELECT id, name, hash, created_utc, last_update_utc FROM schemas WHERE id = "+ph, id)
	if err != nil {
		return SchemaInfo{}, ErrStorageFailure(err, "load schema %s", id)
	}
	var s SchemaInfo
	var name sql.NullString
	if err := row.Scan(&s.ID, &name, &s.Hash, &s.CreatedUTC, &s.LastUpdateUTC); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SchemaInfo{}, ErrNotFound("schema %s not found", id)
		}
		return SchemaInfo{}, ErrStorageFailure(err, "scan schema %s", id)
	}
	s.Name = name.String
	return s, nil
}

// GetSchemaElements returns schemaID's elements ordered by emission
// position, verifying the schema itself exists first so an unknown id
// surfaces as NotFound rather than an empty element list.
func (d *Database) GetSchemaElements(ctx context.Context, schemaID string) ([]SchemaElementInfo, error) {
	if _, err := d.GetSchema(ctx, schemaID); err != nil {
		return nil, err
	}
	elements, err := d.schemas.GetElements(ctx, schemaID)
	if err != nil {
		return nil, ErrStorageFailure(err, "load elements for schema %s", schemaID)
	}
	out := make([]SchemaElementInfo, len(elements))
	for i, e := range elements {
		out[i] = SchemaElementInfo{
			Path:     e.Path,
			DataType: string(e.DataType),
			Nullable: e.Nullable,
			Position: e.Position,
		}
	}
	return out, nil
}
