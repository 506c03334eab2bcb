package docvault

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/docvault-db/docvault/internal/content"
	"github.com/docvault-db/docvault/internal/flatten"
	"github.com/docvault-db/docvault/internal/indexmgr"
	"github.com/docvault-db/docvault/internal/locks"
	"github.com/docvault-db/docvault/internal/metrics"
	"github.com/docvault-db/docvault/internal/query"
	"github.com/docvault-db/docvault/internal/rebuild"
	"github.com/docvault-db/docvault/internal/validate"
)

// Collection is the owner of documents, constraints, and the indexed
// field list. CRUD lives directly on Collection rather than behind a
// separate repository type.
type Collection struct {
	db      *Database
	info    CollectionInfo
	content *content.Store
}

// Info returns the collection's current metadata row.
func (c *Collection) Info() CollectionInfo { return c.info }

// IngestRequest is the caller-facing shape of Ingest.
type IngestRequest struct {
	Name   string
	Body   []byte
	Labels []string
	Tags   map[string]string
}

// IngestResult reports the stored document plus any Flexible-mode
// validation warnings.
type IngestResult struct {
	Document DocumentInfo
	Warnings []string
}

// Ingest runs the full document-lifecycle pipeline: flatten, validate,
// lock, intern schema, write row/labels/tags/index-fan-out in one
// transaction, persist the body, release the lock.
func (c *Collection) Ingest(ctx context.Context, req IngestRequest) (result *IngestResult, err error) {
	start := time.Now()
	defer func() {
		metrics.IngestTotal.WithLabelValues(ingestOutcome(err)).Inc()
		metrics.IngestDuration.WithLabelValues(c.info.Name).Observe(time.Since(start).Seconds())
	}()

	var parsed interface{}
	dec := json.NewDecoder(bytes.NewReader(req.Body))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return nil, ErrInvalidInput("malformed JSON body: %v", err)
	}

	constraintMode, constraints, err := c.GetConstraints(ctx)
	if err != nil {
		return nil, err
	}
	entries, fingerprint := flatten.Flatten(parsed)

	vresult := validate.Validate(validateMode(constraintMode), toValidateConstraints(constraints), entries)
	if !vresult.Accepted {
		return nil, ErrSchemaValidationFailed(vresult.Errors)
	}

	var existing *DocumentInfo
	if req.Name != "" {
		if err := c.db.locks.Acquire(ctx, c.info.ID, req.Name, hostname(), c.db.cfg.Lock.ExpirationInterval); err != nil {
			var held *locks.ErrHeld
			if errors.As(err, &held) {
				return nil, ErrDocumentLocked(LockInfo{
					CollectionID: held.Held.CollectionID,
					DocumentName: held.Held.DocumentName,
					Hostname:     held.Held.Hostname,
					CreatedUTC:   held.Held.CreatedUTC,
				})
			}
			return nil, ErrStorageFailure(err, "acquire lock for %s", req.Name)
		}
		defer c.db.locks.Release(ctx, c.info.ID, req.Name)

		doc, found, err := c.findByName(ctx, req.Name)
		if err != nil {
			return nil, err
		}
		if found {
			existing = &doc
		}
	}

	schemaID, err := c.db.schemas.Intern(ctx, fingerprint, entries)
	if err != nil {
		return nil, ErrStorageFailure(err, "intern schema")
	}

	eligible, err := c.eligibleEntries(ctx, entries)
	if err != nil {
		return nil, err
	}

	valuesByTable := make(map[string][]indexmgr.Entry)
	for _, e := range eligible {
		tableName, err := c.db.index.EnsureTable(ctx, e.Path)
		if err != nil {
			return nil, ErrStorageFailure(err, "ensure index table for %s", e.Path)
		}
		entry := indexmgr.Entry{DocumentID: "", Position: e.Position, Value: e.Value}
		if e.DataType == flatten.TypeInteger || e.DataType == flatten.TypeNumber {
			if n, err := strconv.ParseFloat(e.Value, 64); err == nil {
				entry.Numeric = &n
			}
		}
		valuesByTable[tableName] = append(valuesByTable[tableName], entry)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	docID := uuid.NewString()
	createdUTC := now
	if existing != nil {
		docID = existing.ID
		createdUTC = existing.CreatedUTC
	}
	for table, rowsForTable := range valuesByTable {
		for i := range rowsForTable {
			rowsForTable[i].DocumentID = docID
		}
		valuesByTable[table] = rowsForTable
	}

	contentLength := len(req.Body)

	err = c.db.store.WithTx(ctx, func(tx *sql.Tx) error {
		if existing != nil {
			if err := c.clearPriorState(ctx, tx, existing.ID); err != nil {
				return err
			}
			if err := c.updateDocumentRow(ctx, tx, docID, schemaID, req.Name, contentLength, now); err != nil {
				return err
			}
		} else {
			if err := c.insertDocumentRow(ctx, tx, docID, schemaID, req.Name, contentLength, now); err != nil {
				return err
			}
		}
		if err := c.writeLabelsAndTags(ctx, tx, docID, req.Labels, req.Tags); err != nil {
			return err
		}
		return indexmgr.InsertValuesTx(ctx, tx, c.db.store.Dialect(), valuesByTable)
	})
	if err != nil {
		return nil, ErrStorageFailure(err, "ingest document")
	}

	hash, err := c.content.Put(c.info.ID, docID, req.Body)
	if err != nil {
		return nil, ErrStorageFailure(err, "write document body")
	}
	if err := c.updateHash(ctx, docID, hash); err != nil {
		return nil, err
	}

	return &IngestResult{
		Document: DocumentInfo{
			ID:            docID,
			CollectionID:  c.info.ID,
			SchemaID:      schemaID,
			Name:          req.Name,
			ContentLength: contentLength,
			SHA256:        hash,
			CreatedUTC:    createdUTC,
			LastUpdateUTC: now,
		},
		Warnings: vresult.Warnings,
	}, nil
}

// eligibleEntries filters entries down to the ones the collection's
// indexing_mode says should be fanned out.
func (c *Collection) eligibleEntries(ctx context.Context, entries flatten.Entries) (flatten.Entries, error) {
	switch c.info.IndexingMode {
	case IndexingAll:
		return entries, nil
	case IndexingNone:
		return nil, nil
	case IndexingSelective:
		fields, err := c.indexedFieldSet(ctx)
		if err != nil {
			return nil, err
		}
		var out flatten.Entries
		for _, e := range entries {
			if fields[e.Path] {
				out = append(out, e)
			}
		}
		return out, nil
	default:
		return entries, nil
	}
}

func (c *Collection) indexedFieldSet(ctx context.Context) (map[string]bool, error) {
	fields, err := c.IndexedFields(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f] = true
	}
	return out, nil
}

// IndexedFields returns the collection's declared IndexedField list
// (only meaningful under Selective mode).
func (c *Collection) IndexedFields(ctx context.Context) ([]string, error) {
	ph := c.db.store.Dialect().Placeholder(1)
	rows, err := c.db.store.Query(ctx, "SELECT field_path FROM indexedfields WHERE collection_id = "+ph, c.info.ID)
	if err != nil {
		return nil, ErrStorageFailure(err, "list indexed fields")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, ErrStorageFailure(err, "scan indexed field")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *Collection) findByName(ctx context.Context, name string) (DocumentInfo, bool, error) {
	ph1 := c.db.store.Dialect().Placeholder(1)
	ph2 := c.db.store.Dialect().Placeholder(2)
	row, err := c.db.store.QueryRow(ctx,
		"SELECT id, schema_id, name, content_length, sha256, created_utc, last_update_utc FROM documents WHERE collection_id = "+ph1+" AND name = "+ph2,
		c.info.ID, name)
	if err != nil {
		return DocumentInfo{}, false, ErrStorageFailure(err, "lookup document by name")
	}
	var doc DocumentInfo
	var sha sql.NullString
	var nm sql.NullString
	if err := row.Scan(&doc.ID, &doc.SchemaID, &nm, &doc.ContentLength, &sha, &doc.CreatedUTC, &doc.LastUpdateUTC); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocumentInfo{}, false, nil
		}
		return DocumentInfo{}, false, ErrStorageFailure(err, "scan document by name")
	}
	doc.CollectionID = c.info.ID
	doc.Name = nm.String
	doc.SHA256 = sha.String
	return doc, true, nil
}

func (c *Collection) clearPriorState(ctx context.Context, tx *sql.Tx, documentID string) error {
	ph := c.db.store.Dialect().Placeholder(1)
	if _, err := tx.ExecContext(ctx, "DELETE FROM labels WHERE document_id = "+ph, documentID); err != nil {
		return fmt.Errorf("clear prior labels: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE document_id = "+ph, documentID); err != nil {
		return fmt.Errorf("clear prior tags: %w", err)
	}
	mappedPaths, err := c.db.index.AllMappedPaths(ctx)
	if err != nil {
		return fmt.Errorf("list index tables: %w", err)
	}
	for _, path := range mappedPaths {
		tableName, ok, err := c.db.index.TableForPath(ctx, path)
		if err != nil {
			return fmt.Errorf("resolve index table for %s: %w", path, err)
		}
		if !ok {
			continue
		}
		if err := indexmgr.DeleteForDocumentTx(ctx, tx, c.db.store.Dialect(), tableName, documentID); err != nil {
			return fmt.Errorf("clear prior index rows in %s: %w", tableName, err)
		}
	}
	return nil
}

func (c *Collection) insertDocumentRow(ctx context.Context, tx *sql.Tx, docID, schemaID, name string, contentLength int, now string) error {
	ph := c.db.store.Dialect().Placeholder
	var nameArg interface{}
	if name != "" {
		nameArg = name
	}
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO documents (id, collection_id, schema_id, name, content_length, sha256, created_utc, last_update_utc) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
			ph(1), ph(2), ph(3), ph(4), ph(5), ph(6), ph(7), ph(8)),
		docID, c.info.ID, schemaID, nameArg, contentLength, nil, now, now)
	if err != nil {
		return fmt.Errorf("insert document row: %w", err)
	}
	return nil
}

func (c *Collection) updateDocumentRow(ctx context.Context, tx *sql.Tx, docID, schemaID, name string, contentLength int, now string) error {
	ph := c.db.store.Dialect().Placeholder
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE documents SET schema_id = %s, content_length = %s, last_update_utc = %s WHERE id = %s", ph(1), ph(2), ph(3), ph(4)),
		schemaID, contentLength, now, docID)
	if err != nil {
		return fmt.Errorf("update document row: %w", err)
	}
	return nil
}

func (c *Collection) updateHash(ctx context.Context, docID, hash string) error {
	ph1 := c.db.store.Dialect().Placeholder(1)
	ph2 := c.db.store.Dialect().Placeholder(2)
	_, err := c.db.store.Exec(ctx, "UPDATE documents SET sha256 = "+ph1+" WHERE id = "+ph2, hash, docID)
	if err != nil {
		return ErrStorageFailure(err, "record body hash")
	}
	return nil
}

func (c *Collection) writeLabelsAndTags(ctx context.Context, tx *sql.Tx, docID string, labels []string, tags map[string]string) error {
	ph := c.db.store.Dialect().Placeholder
	for _, l := range labels {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO labels (id, document_id, label_value) VALUES (%s, %s, %s)", ph(1), ph(2), ph(3)),
			uuid.NewString(), docID, l); err != nil {
			return fmt.Errorf("insert label: %w", err)
		}
	}
	for k, v := range tags {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO tags (id, collection_id, document_id, tag_key, tag_value) VALUES (%s, NULL, %s, %s, %s)", ph(1), ph(2), ph(3), ph(4)),
			uuid.NewString(), docID, k, v); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return nil
}

// Get loads a document's row and body by id.
func (c *Collection) Get(ctx context.Context, documentID string) (*DocumentInfo, []byte, error) {
	doc, err := c.loadDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	body, err := c.content.Get(c.info.ID, documentID)
	if err != nil {
		return nil, nil, ErrStorageFailure(err, "load body for document %s", documentID)
	}
	return &doc, body, nil
}

// GetByName loads a document's row and body by its unique
// (collection, name) pair.
func (c *Collection) GetByName(ctx context.Context, name string) (*DocumentInfo, []byte, error) {
	doc, found, err := c.findByName(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, ErrNotFound("document %q not found in collection %s", name, c.info.ID)
	}
	body, err := c.content.Get(c.info.ID, doc.ID)
	if err != nil {
		return nil, nil, ErrStorageFailure(err, "load body for document %s", doc.ID)
	}
	return &doc, body, nil
}

func (c *Collection) loadDocument(ctx context.Context, documentID string) (DocumentInfo, error) {
	ph := c.db.store.Dialect().Placeholder(1)
	row, err := c.db.store.QueryRow(ctx,
		"SELECT id, schema_id, name, content_length, sha256, created_utc, last_update_utc FROM documents WHERE id = "+ph,
		documentID)
	if err != nil {
		return DocumentInfo{}, ErrStorageFailure(err, "load document %s", documentID)
	}
	var doc DocumentInfo
	var sha, nm sql.NullString
	if err := row.Scan(&doc.ID, &doc.SchemaID, &nm, &doc.ContentLength, &sha, &doc.CreatedUTC, &doc.LastUpdateUTC); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DocumentInfo{}, ErrNotFound("document %s not found", documentID)
		}
		return DocumentInfo{}, ErrStorageFailure(err, "scan document %s", documentID)
	}
	doc.CollectionID = c.info.ID
	doc.Name = nm.String
	doc.SHA256 = sha.String
	return doc, nil
}

func (c *Collection) loadDocuments(ctx context.Context, ids []string) ([]DocumentInfo, error) {
	out := make([]DocumentInfo, 0, len(ids))
	for _, id := range ids {
		doc, err := c.loadDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// ListDocuments returns up to limit documents in the collection,
// ordered by creation time, starting after skip.
func (c *Collection) ListDocuments(ctx context.Context, skip, limit int) ([]DocumentInfo, error) {
	ids, err := c.db.documentIDs(ctx, c.info.ID)
	if err != nil {
		return nil, err
	}
	docs, err := c.loadDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortDocuments(docs, query.CreatedAscending)
	if skip > len(docs) {
		skip = len(docs)
	}
	end := skip + limit
	if limit <= 0 || end > len(docs) {
		end = len(docs)
	}
	return docs[skip:end], nil
}

// Delete removes a document's row, labels, tags, index rows across
// every index table, body, and any lingering lock.
func (c *Collection) Delete(ctx context.Context, documentID string) error {
	doc, err := c.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}

	err = c.db.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := c.clearPriorState(ctx, tx, documentID); err != nil {
			return err
		}
		ph := c.db.store.Dialect().Placeholder(1)
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = "+ph, documentID); err != nil {
			return fmt.Errorf("delete document row: %w", err)
		}
		return nil
	})
	if err != nil {
		return ErrStorageFailure(err, "delete document %s", documentID)
	}

	if err := c.content.Delete(c.info.ID, documentID); err != nil {
		return ErrStorageFailure(err, "delete body for document %s", documentID)
	}
	if doc.Name != "" {
		if err := c.db.locks.Release(ctx, c.info.ID, doc.Name); err != nil {
			c.db.log.Warn("docvault: release lock for %s/%s failed: %v", c.info.ID, doc.Name, err)
		}
	}
	return nil
}

// GetConstraints returns the collection's enforcement mode and
// declared field constraints.
func (c *Collection) GetConstraints(ctx context.Context) (SchemaEnforcementMode, []FieldConstraint, error) {
	ph := c.db.store.Dialect().Placeholder(1)
	rows, err := c.db.store.Query(ctx,
		"SELECT field_path, data_type, required, nullable, regex_pattern, min_value, max_value, min_length, max_length, allowed_values, array_element_type FROM fieldconstraints WHERE collection_id = "+ph,
		c.info.ID)
	if err != nil {
		return 0, nil, ErrStorageFailure(err, "load constraints")
	}
	defer rows.Close()

	var out []FieldConstraint
	for rows.Next() {
		var fc FieldConstraint
		var dataType string
		var required, nullable int
		var regex sql.NullString
		var minV, maxV sql.NullFloat64
		var minL, maxL sql.NullInt64
		var allowed sql.NullString
		var arrayElemType sql.NullString
		if err := rows.Scan(&fc.FieldPath, &dataType, &required, &nullable, &regex, &minV, &maxV, &minL, &maxL, &allowed, &arrayElemType); err != nil {
			return 0, nil, ErrStorageFailure(err, "scan constraint")
		}
		fc.DataType = flatten.DataType(dataType)
		fc.Required = required != 0
		fc.Nullable = nullable != 0
		fc.RegexPattern = regex.String
		if minV.Valid {
			v := minV.Float64
			fc.MinValue = &v
		}
		if maxV.Valid {
			v := maxV.Float64
			fc.MaxValue = &v
		}
		if minL.Valid {
			v := int(minL.Int64)
			fc.MinLength = &v
		}
		if maxL.Valid {
			v := int(maxL.Int64)
			fc.MaxLength = &v
		}
		if allowed.Valid && allowed.String != "" {
			_ = json.Unmarshal([]byte(allowed.String), &fc.AllowedValues)
		}
		if arrayElemType.Valid && arrayElemType.String != "" {
			fc.ArrayElementType = flatten.DataType(arrayElemType.String)
			fc.HasArrayElemType = true
		}
		out = append(out, fc)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, ErrStorageFailure(err, "iterate constraints")
	}
	return c.info.SchemaEnforcementMode, out, nil
}

// SetConstraints replaces the collection's enforcement mode and field
// constraint list wholesale.
func (c *Collection) SetConstraints(ctx context.Context, mode SchemaEnforcementMode, constraints []FieldConstraint) error {
	ph := c.db.store.Dialect().Placeholder
	err := c.db.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM fieldconstraints WHERE collection_id = "+ph(1), c.info.ID); err != nil {
			return fmt.Errorf("clear constraints: %w", err)
		}
		for _, fc := range constraints {
			allowedJSON := ""
			if len(fc.AllowedValues) > 0 {
				b, _ := json.Marshal(fc.AllowedValues)
				allowedJSON = string(b)
			}
			var minV, maxV interface{}
			if fc.MinValue != nil {
				minV = *fc.MinValue
			}
			if fc.MaxValue != nil {
				maxV = *fc.MaxValue
			}
			var minL, maxL interface{}
			if fc.MinLength != nil {
				minL = *fc.MinLength
			}
			if fc.MaxLength != nil {
				maxL = *fc.MaxLength
			}
			var arrayElemType interface{}
			if fc.HasArrayElemType {
				arrayElemType = string(fc.ArrayElementType)
			}
			required, nullable := 0, 0
			if fc.Required {
				required = 1
			}
			if fc.Nullable {
				nullable = 1
			}
			_, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO fieldconstraints (id, collection_id, field_path, data_type, required, nullable, regex_pattern, min_value, max_value, min_length, max_length, allowed_values, array_element_type) VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)",
					ph(1), ph(2), ph(3), ph(4), ph(5), ph(6), ph(7), ph(8), ph(9), ph(10), ph(11), ph(12), ph(13)),
				uuid.NewString(), c.info.ID, fc.FieldPath, string(fc.DataType), required, nullable, fc.RegexPattern, minV, maxV, minL, maxL, allowedJSON, arrayElemType)
			if err != nil {
				return fmt.Errorf("insert constraint for %s: %w", fc.FieldPath, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE collections SET schema_enforcement_mode = %s, last_update_utc = %s WHERE id = %s", ph(1), ph(2), ph(3)),
			int(mode), time.Now().UTC().Format(time.RFC3339Nano), c.info.ID); err != nil {
			return fmt.Errorf("update enforcement mode: %w", err)
		}
		return nil
	})
	if err != nil {
		return ErrStorageFailure(err, "set constraints")
	}
	c.info.SchemaEnforcementMode = mode
	return nil
}

// GetIndexing returns the collection's indexing mode and, under
// Selective, its declared field list.
func (c *Collection) GetIndexing(ctx context.Context) (IndexingMode, []string, error) {
	fields, err := c.IndexedFields(ctx)
	if err != nil {
		return 0, nil, err
	}
	return c.info.IndexingMode, fields, nil
}

// SetIndexing updates the collection's indexing mode and, under
// Selective, its declared field list. When rebuild is true it runs the
// rebuild engine synchronously and returns its stats.
func (c *Collection) SetIndexing(ctx context.Context, mode IndexingMode, fields []string, rebuildRequested, dropUnused bool) (*rebuild.Stats, error) {
	ph := c.db.store.Dialect().Placeholder
	err := c.db.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM indexedfields WHERE collection_id = "+ph(1), c.info.ID); err != nil {
			return fmt.Errorf("clear indexed fields: %w", err)
		}
		for _, f := range fields {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO indexedfields (id, collection_id, field_path) VALUES (%s, %s, %s)", ph(1), ph(2), ph(3)),
				uuid.NewString(), c.info.ID, f); err != nil {
				return fmt.Errorf("insert indexed field %s: %w", f, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE collections SET indexing_mode = %s, last_update_utc = %s WHERE id = %s", ph(1), ph(2), ph(3)),
			int(mode), time.Now().UTC().Format(time.RFC3339Nano), c.info.ID); err != nil {
			return fmt.Errorf("update indexing mode: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, ErrStorageFailure(err, "set indexing")
	}
	c.info.IndexingMode = mode

	if !rebuildRequested {
		return nil, nil
	}
	return c.Rebuild(ctx, dropUnused)
}

// Rebuild replays every stored document through the index pipeline.
func (c *Collection) Rebuild(ctx context.Context, dropUnused bool) (*rebuild.Stats, error) {
	start := time.Now()
	defer func() {
		metrics.RebuildDuration.WithLabelValues(c.info.Name).Observe(time.Since(start).Seconds())
	}()

	fields, err := c.IndexedFields(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := rebuild.Run(ctx, rebuild.Deps{
		Store:   c.db.store,
		Index:   c.db.index,
		Content: c.content,
	}, rebuild.Params{
		CollectionID:    c.info.ID,
		IndexingMode:    int(c.info.IndexingMode),
		SelectiveFields: fields,
		DropUnused:      dropUnused,
		Concurrency:     c.db.cfg.Rebuild.Concurrency,
	})
	if err != nil {
		return stats, ErrStorageFailure(err, "rebuild collection %s", c.info.ID)
	}
	return stats, nil
}

func validateMode(m SchemaEnforcementMode) validate.Mode {
	switch m {
	case EnforcementStrict:
		return validate.ModeStrict
	case EnforcementFlexible:
		return validate.ModeFlexible
	case EnforcementPartial:
		return validate.ModePartial
	default:
		return validate.ModeNone
	}
}

func toValidateConstraints(in []FieldConstraint) []validate.Constraint {
	out := make([]validate.Constraint, len(in))
	for i, fc := range in {
		out[i] = validate.Constraint{
			FieldPath:        fc.FieldPath,
			DataType:         fc.DataType,
			Required:         fc.Required,
			Nullable:         fc.Nullable,
			RegexPattern:     fc.RegexPattern,
			MinValue:         fc.MinValue,
			MaxValue:         fc.MaxValue,
			MinLength:        fc.MinLength,
			MaxLength:        fc.MaxLength,
			AllowedValues:    fc.AllowedValues,
			ArrayElementType: fc.ArrayElementType,
			HasArrayElemType: fc.HasArrayElemType,
		}
	}
	return out
}

// ingestOutcome maps an Ingest result onto the metrics.IngestTotal
// outcome label.
func ingestOutcome(err error) string {
	switch KindOf(err) {
	case "":
		return "ok"
	case KindDocumentLocked:
		return "locked"
	case KindSchemaValidationFailed:
		return "rejected"
	case KindInvalidInput, KindFieldNotIndexed:
		return "invalid"
	default:
		return "storage_error"
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
