// Package schema implements the schema registry: interning a
// structural fingerprint into a schema id, and returning a schema's
// elements in emission order. Schemas are
// immutable once created; only their optional name may change.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docvault-db/docvault/internal/flatten"
	"github.com/docvault-db/docvault/internal/storage"
)

// Element is one (path, data_type, nullable) member of an interned schema.
type Element struct {
	Path     string
	DataType flatten.DataType
	Nullable bool
	Position int
}

// Registry interns document schemas against a Store.
type Registry struct {
	store *storage.Store
}

// New returns a Registry backed by store.
func New(store *storage.Store) *Registry {
	return &Registry{store: store}
}

// Intern returns the schema id for fingerprint, creating a new schema
// row plus its elements (ordered by emission position) if one does not
// already exist. The lookup runs first, outside any transaction; the
// schema row and its elements are then inserted in one transaction. If
// a concurrent intern of the same fingerprint wins the race, the
// loser's insert fails on the unique hash and it retries the lookup.
func (r *Registry) Intern(ctx context.Context, fingerprint string, entries flatten.Entries) (string, error) {
	if id, ok, err := r.lookup(ctx, fingerprint); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	elements := deduceElements(entries)

	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		ph := r.store.Dialect().Placeholder
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO schemas (id, name, hash, created_utc, last_update_utc) VALUES (%s, %s, %s, %s, %s)",
				ph(1), ph(2), ph(3), ph(4), ph(5)),
			id, nil, fingerprint, now, now)
		if err != nil {
			return err
		}
		for i, el := range elements {
			nullable := 0
			if el.Nullable {
				nullable = 1
			}
			_, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO schemaelements (id, schema_id, position, key_path, data_type, nullable) VALUES (%s, %s, %s, %s, %s, %s)",
					ph(1), ph(2), ph(3), ph(4), ph(5), ph(6)),
				uuid.NewString(), id, i, el.Path, string(el.DataType), nullable)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Another goroutine may have won the race between our lookup and
		// insert; re-check before surfacing a failure.
		if existingID, ok, lookupErr := r.lookup(ctx, fingerprint); lookupErr == nil && ok {
			return existingID, nil
		}
		return "", fmt.Errorf("schema: intern %s: %w", fingerprint, err)
	}
	return id, nil
}

func (r *Registry) lookup(ctx context.Context, fingerprint string) (string, bool, error) {
	ph := r.store.Dialect().Placeholder(1)
	row, err := r.store.QueryRow(ctx, "SELECT id FROM schemas WHERE hash = "+ph, fingerprint)
	if err != nil {
		return "", false, err
	}
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("schema: lookup %s: %w", fingerprint, err)
	}
	return id, true, nil
}

// GetElements returns schemaID's elements ordered by emission position.
func (r *Registry) GetElements(ctx context.Context, schemaID string) ([]Element, error) {
	ph := r.store.Dialect().Placeholder(1)
	rows, err := r.store.Query(ctx,
		"SELECT key_path, data_type, nullable, position FROM schemaelements WHERE schema_id = "+ph+" ORDER BY position",
		schemaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Element
	for rows.Next() {
		var e Element
		var nullable int
		if err := rows.Scan(&e.Path, &e.DataType, &nullable, &e.Position); err != nil {
			return nil, fmt.Errorf("schema: scan element: %w", err)
		}
		e.Nullable = nullable != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: iterate elements: %w", err)
	}
	return out, nil
}

// Rename sets schemaID's optional display name. Schema content itself
// is never mutated after creation.
func (r *Registry) Rename(ctx context.Context, schemaID, name string) error {
	ph1 := r.store.Dialect().Placeholder(1)
	ph2 := r.store.Dialect().Placeholder(2)
	_, err := r.store.Exec(ctx,
		fmt.Sprintf("UPDATE schemas SET name = %s, last_update_utc = %s WHERE id = %s", ph1, ph2, r.store.Dialect().Placeholder(3)),
		name, time.Now().UTC().Format(time.RFC3339Nano), schemaID)
	if err != nil {
		return fmt.Errorf("schema: rename %s: %w", schemaID, err)
	}
	return nil
}

// deduceElements reduces a flattened entry sequence to one Element per
// distinct path, in first-seen order, with nullable set true if any
// occurrence of that path was null.
func deduceElements(entries flatten.Entries) []Element {
	seen := make(map[string]int) // path -> index into result
	var result []Element

	for _, e := range entries {
		idx, ok := seen[e.Path]
		if !ok {
			seen[e.Path] = len(result)
			result = append(result, Element{Path: e.Path, DataType: e.DataType, Nullable: e.DataType == flatten.TypeNull})
			continue
		}
		if e.DataType == flatten.TypeNull {
			result[idx].Nullable = true
		} else {
			result[idx].DataType = e.DataType
		}
	}
	for i := range result {
		result[i].Position = i
	}
	return result
}
