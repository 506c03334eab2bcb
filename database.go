// Package docvault is a single-node JSON document store: collections
// own documents, each document is flattened into indexed leaf values,
// and documents are retrieved by id, by structured filter, or by a
// restricted SQL subset.
package docvault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/docvault-db/docvault/internal/config"
	"github.com/docvault-db/docvault/internal/content"
	"github.com/docvault-db/docvault/internal/indexmgr"
	"github.com/docvault-db/docvault/internal/locks"
	"github.com/docvault-db/docvault/internal/logger"
	"github.com/docvault-db/docvault/internal/schema"
	"github.com/docvault-db/docvault/internal/storage"
)

// Database is the top-level handle: one relational Store plus the
// managers layered over it (index tables, schema registry, locks), and
// the content root all collections' body directories live under.
type Database struct {
	cfg     *config.Config
	store   *storage.Store
	index   *indexmgr.Manager
	schemas *schema.Registry
	locks   *locks.Manager
	log     *logger.Logger

	sweepCancel context.CancelFunc
}

// Open connects to cfg.Storage, bootstraps the base schema by applying
// the storage package's embedded migrations (a no-op once they have
// run), and starts the background lock sweep.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Database, error) {
	if log == nil {
		log = logger.Default()
	}
	store, err := storage.Open(ctx, cfg.Storage, cfg.Pool, log)
	if err != nil {
		return nil, fmt.Errorf("docvault: open storage: %w", err)
	}
	if err := store.Bootstrap(); err != nil {
		store.Close()
		return nil, fmt.Errorf("docvault: bootstrap: %w", err)
	}

	db := &Database{
		cfg:     cfg,
		store:   store,
		index:   indexmgr.New(store),
		schemas: schema.New(store),
		locks:   locks.New(store),
		log:     log,
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	db.sweepCancel = cancel
	go db.locks.Run(sweepCtx, cfg.Lock.ExpirationInterval, cfg.Lock.SweepInterval)

	return db, nil
}

// Close stops the lock sweep and closes the underlying Store.
func (d *Database) Close() error {
	if d.sweepCancel != nil {
		d.sweepCancel()
	}
	return d.store.Close()
}

// Store exposes the relational handle, for callers (the rebuild
// engine, administrative tooling) that need it directly.
func (d *Database) Store() *storage.Store { return d.store }

// CreateCollectionOptions configures CreateCollection.
type CreateCollectionOptions struct {
	Description           string
	DocumentsDirectory    string
	Labels                []string
	Tags                  map[string]string
	SchemaEnforcementMode SchemaEnforcementMode
	IndexingMode          IndexingMode
}

// CreateCollection inserts a new collection row and returns its handle.
// name must be unique; a duplicate surfaces as KindInvalidInput, since
// collections are flatly namespaced by name.
func (d *Database) CreateCollection(ctx context.Context, name string, opts CreateCollectionOptions) (*Collection, error) {
	if name == "" {
		return nil, ErrInvalidInput("collection name must not be empty")
	}

	docsDir := opts.DocumentsDirectory
	if docsDir == "" {
		docsDir = filepath.Join(d.cfg.Content.DocumentsDirectory, uuid.NewString())
	}

	info := CollectionInfo{
		ID:                    uuid.NewString(),
		Name:                  name,
		Description:           opts.Description,
		DocumentsDirectory:    docsDir,
		Labels:                opts.Labels,
		Tags:                  opts.Tags,
		SchemaEnforcementMode: opts.SchemaEnforcementMode,
		IndexingMode:          opts.IndexingMode,
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	info.CreatedUTC, info.LastUpdateUTC = now, now

	ph := d.store.Dialect().Placeholder
	err := d.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO collections (id, name, description, documents_directory, schema_enforcement_mode, indexing_mode, created_utc, last_update_utc) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
				ph(1), ph(2), ph(3), ph(4), ph(5), ph(6), ph(7), ph(8)),
			info.ID, info.Name, info.Description, info.DocumentsDirectory, int(info.SchemaEnforcementMode), int(info.IndexingMode), info.CreatedUTC, info.LastUpdateUTC)
		if err != nil {
			return err
		}
		for _, l := range opts.Labels {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO collectionlabels (id, collection_id, label_value) VALUES (%s, %s, %s)", ph(1), ph(2), ph(3)),
				uuid.NewString(), info.ID, l); err != nil {
				return err
			}
		}
		for k, v := range opts.Tags {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO tags (id, collection_id, document_id, tag_key, tag_value) VALUES (%s, %s, NULL, %s, %s)", ph(1), ph(2), ph(3), ph(4)),
				uuid.NewString(), info.ID, k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, ErrInvalidInput("collection %q already exists", name)
		}
		return nil, ErrStorageFailure(err, "create collection %q", name)
	}

	return d.newCollectionHandle(info)
}

// GetCollection loads a collection by id.
func (d *Database) GetCollection(ctx context.Context, id string) (*Collection, error) {
	info, err := d.loadCollection(ctx, "id", id)
	if err != nil {
		return nil, err
	}
	return d.newCollectionHandle(info)
}

// GetCollectionByName loads a collection by its unique name.
func (d *Database) GetCollectionByName(ctx context.Context, name string) (*Collection, error) {
	info, err := d.loadCollection(ctx, "name", name)
	if err != nil {
		return nil, err
	}
	return d.newCollectionHandle(info)
}

func (d *Database) loadCollection(ctx context.Context, column, value string) (CollectionInfo, error) {
	ph := d.store.Dialect().Placeholder(1)
	row, err := d.store.QueryRow(ctx,
		"SELECT id, name, description, documents_directory, schema_enforcement_mode, indexing_mode, created_utc, last_update_utc FROM collections WHERE "+column+" = "+ph,
		value)
	if err != nil {
		return CollectionInfo{}, ErrStorageFailure(err, "load collection")
	}
	var info CollectionInfo
	var enforcement, indexing int
	if err := row.Scan(&info.ID, &info.Name, &info.Description, &info.DocumentsDirectory, &enforcement, &indexing, &info.CreatedUTC, &info.LastUpdateUTC); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CollectionInfo{}, ErrNotFound("collection %q not found", value)
		}
		return CollectionInfo{}, ErrStorageFailure(err, "scan collection row")
	}
	info.SchemaEnforcementMode = SchemaEnforcementMode(enforcement)
	info.IndexingMode = IndexingMode(indexing)

	info.Labels, err = d.collectionLabels(ctx, info.ID)
	if err != nil {
		return CollectionInfo{}, err
	}
	info.Tags, err = d.collectionTags(ctx, info.ID)
	if err != nil {
		return CollectionInfo{}, err
	}
	return info, nil
}

func (d *Database) collectionLabels(ctx context.Context, collectionID string) ([]string, error) {
	ph := d.store.Dialect().Placeholder(1)
	rows, err := d.store.Query(ctx, "SELECT label_value FROM collectionlabels WHERE collection_id = "+ph, collectionID)
	if err != nil {
		return nil, ErrStorageFailure(err, "load collection labels")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, ErrStorageFailure(err, "scan collection label")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (d *Database) collectionTags(ctx context.Context, collectionID string) (map[string]string, error) {
	ph := d.store.Dialect().Placeholder(1)
	rows, err := d.store.Query(ctx, "SELECT tag_key, tag_value FROM tags WHERE collection_id = "+ph+" AND document_id IS NULL", collectionID)
	if err != nil {
		return nil, ErrStorageFailure(err, "load collection tags")
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, ErrStorageFailure(err, "scan collection tag")
		}
		out[k] = v.String
	}
	return out, rows.Err()
}

// ListCollections returns every collection, ordered by name.
func (d *Database) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := d.store.Query(ctx, "SELECT id FROM collections ORDER BY name")
	if err != nil {
		return nil, ErrStorageFailure(err, "list collections")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, ErrStorageFailure(err, "scan collection id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, ErrStorageFailure(err, "iterate collections")
	}
	rows.Close()

	out := make([]CollectionInfo, 0, len(ids))
	for _, id := range ids {
		info, err := d.loadCollection(ctx, "id", id)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// DeleteCollection removes a collection and cascades the delete to its
// documents, labels, tags, constraints, indexed-field declarations,
// object locks, body directory, and its document rows' index entries
// across every process-wide index table.
func (d *Database) DeleteCollection(ctx context.Context, id string) error {
	info, err := d.loadCollection(ctx, "id", id)
	if err != nil {
		return err
	}

	docIDs, err := d.documentIDs(ctx, id)
	if err != nil {
		return err
	}

	if len(docIDs) > 0 {
		mappedPaths, err := d.index.AllMappedPaths(ctx)
		if err != nil {
			return ErrStorageFailure(err, "list index tables")
		}
		for _, path := range mappedPaths {
			tableName, ok, err := d.index.TableForPath(ctx, path)
			if err != nil {
				return ErrStorageFailure(err, "resolve index table for %s", path)
			}
			if !ok {
				continue
			}
			for _, docID := range docIDs {
				if err := d.index.DeleteForDocument(ctx, tableName, docID); err != nil {
					return ErrStorageFailure(err, "delete index rows for document %s", docID)
				}
			}
		}
	}

	ph := d.store.Dialect().Placeholder
	err = d.store.WithTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			"DELETE FROM labels WHERE document_id IN (SELECT id FROM documents WHERE collection_id = " + ph(1) + ")",
			"DELETE FROM tags WHERE collection_id = " + ph(1),
			"DELETE FROM tags WHERE document_id IN (SELECT id FROM documents WHERE collection_id = " + ph(1) + ")",
			"DELETE FROM collectionlabels WHERE collection_id = " + ph(1),
			"DELETE FROM fieldconstraints WHERE collection_id = " + ph(1),
			"DELETE FROM indexedfields WHERE collection_id = " + ph(1),
			"DELETE FROM objectlocks WHERE collection_id = " + ph(1),
			"DELETE FROM documents WHERE collection_id = " + ph(1),
			"DELETE FROM collections WHERE id = " + ph(1),
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete cascade: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return ErrStorageFailure(err, "delete collection %s", id)
	}

	if err := os.RemoveAll(info.DocumentsDirectory); err != nil {
		d.log.Warn("docvault: remove body directory %s failed: %v", info.DocumentsDirectory, err)
	}
	return nil
}

func (d *Database) documentIDs(ctx context.Context, collectionID string) ([]string, error) {
	ph := d.store.Dialect().Placeholder(1)
	rows, err := d.store.Query(ctx, "SELECT id FROM documents WHERE collection_id = "+ph, collectionID)
	if err != nil {
		return nil, ErrStorageFailure(err, "list document ids")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ErrStorageFailure(err, "scan document id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// newCollectionHandle wraps info into a Collection with its own content
// store rooted at info.DocumentsDirectory.
func (d *Database) newCollectionHandle(info CollectionInfo) (*Collection, error) {
	cs, err := content.New(info.DocumentsDirectory)
	if err != nil {
		return nil, ErrStorageFailure(err, "open content store for collection %s", info.ID)
	}
	return &Collection{db: d, info: info, content: cs}, nil
}
