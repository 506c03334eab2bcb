package docvault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/docvault-db/docvault/internal/config"
	"github.com/docvault-db/docvault/internal/flatten"
	"github.com/docvault-db/docvault/internal/query"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DSN = filepath.Join(dir, "docvault.db")
	cfg.Content.DocumentsDirectory = filepath.Join(dir, "documents")
	// Keep the rebuild single-threaded under SQLite's single-writer
	// model; the worker-pool path is exercised against server backends.
	cfg.Rebuild.Concurrency = 1

	db, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func structuredPlan(t *testing.T, filters ...query.FieldFilterInput) *query.Plan {
	t.Helper()
	plan, err := query.CompileStructured(query.StructuredRequest{Filters: filters})
	if err != nil {
		t.Fatalf("compile plan: %v", err)
	}
	return plan
}

func TestIngestAndExactMatchSearch(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "People", CreateCollectionOptions{IndexingMode: IndexingAll})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	body := []byte(`{"first":"Joel","age":42}`)
	result, err := col.Ingest(ctx, IngestRequest{Body: body})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Document.ContentLength != len(body) {
		t.Fatalf("content length: got %d, want %d", result.Document.ContentLength, len(body))
	}
	wantHash := sha256.Sum256(body)
	if result.Document.SHA256 != hex.EncodeToString(wantHash[:]) {
		t.Fatalf("sha256 mismatch: got %s", result.Document.SHA256)
	}

	res, err := col.Search(ctx, structuredPlan(t, query.FieldFilterInput{Field: "first", Condition: "Equals", Value: "Joel"}))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.TotalRecords != 1 || len(res.Documents) != 1 {
		t.Fatalf("expected exactly one match, got total=%d documents=%d", res.TotalRecords, len(res.Documents))
	}
	if res.Documents[0].Document.ID != result.Document.ID {
		t.Fatalf("matched wrong document: %s", res.Documents[0].Document.ID)
	}
}

func TestNumericRangeSearchIsNotLexicographic(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "nums", CreateCollectionOptions{IndexingMode: IndexingAll})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := col.Ingest(ctx, IngestRequest{Body: []byte(`{"n":9}`)}); err != nil {
		t.Fatalf("ingest 9: %v", err)
	}
	if _, err := col.Ingest(ctx, IngestRequest{Body: []byte(`{"n":10}`)}); err != nil {
		t.Fatalf("ingest 10: %v", err)
	}

	// Lexically "10" < "9"; numerically it is not.
	res, err := col.Search(ctx, structuredPlan(t, query.FieldFilterInput{Field: "n", Condition: "GreaterThan", Value: "9"}))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.TotalRecords != 1 {
		t.Fatalf("expected one document with n > 9, got %d", res.TotalRecords)
	}
}

func TestStrictConstraintRejectionLeavesNoState(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "users", CreateCollectionOptions{
		SchemaEnforcementMode: EnforcementStrict,
		IndexingMode:          IndexingAll,
	})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	err = col.SetConstraints(ctx, EnforcementStrict, []FieldConstraint{{
		FieldPath:    "email",
		DataType:     flatten.TypeString,
		Required:     true,
		RegexPattern: `[^@]+@[^@]+`,
	}})
	if err != nil {
		t.Fatalf("set constraints: %v", err)
	}

	_, err = col.Ingest(ctx, IngestRequest{Body: []byte(`{"email":"nope"}`)})
	if KindOf(err) != KindSchemaValidationFailed {
		t.Fatalf("expected SchemaValidationFailed, got %v", err)
	}
	var derr *Error
	if !errors.As(err, &derr) || len(derr.FieldErrors) != 1 {
		t.Fatalf("expected one field error, got %+v", derr)
	}

	docs, err := col.ListDocuments(ctx, 0, 0)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no document rows after rejection, got %d", len(docs))
	}
	tables, err := db.ListIndexTables(ctx)
	if err != nil {
		t.Fatalf("list index tables: %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("expected no index tables after rejection, got %v", tables)
	}
}

func TestFlexibleModeAcceptsWithWarnings(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "flexible", CreateCollectionOptions{
		SchemaEnforcementMode: EnforcementFlexible,
		IndexingMode:          IndexingNone,
	})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if err := col.SetConstraints(ctx, EnforcementFlexible, []FieldConstraint{{
		FieldPath: "age", DataType: flatten.TypeInteger, Required: true,
	}}); err != nil {
		t.Fatalf("set constraints: %v", err)
	}

	result, err := col.Ingest(ctx, IngestRequest{Body: []byte(`{"name":"x"}`)})
	if err != nil {
		t.Fatalf("expected Flexible mode to accept, got %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}
}

func TestNamedUpdateKeepsDocumentID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "configs", CreateCollectionOptions{IndexingMode: IndexingAll})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	first, err := col.Ingest(ctx, IngestRequest{Name: "app", Body: []byte(`{"retries":3}`)})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := col.Ingest(ctx, IngestRequest{Name: "app", Body: []byte(`{"retries":5}`)})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if first.Document.ID != second.Document.ID {
		t.Fatalf("update changed document id: %s vs %s", first.Document.ID, second.Document.ID)
	}
	if first.Document.SchemaID != second.Document.SchemaID {
		t.Fatalf("same shape should intern one schema, got %s vs %s", first.Document.SchemaID, second.Document.SchemaID)
	}

	// Prior index entries must be replaced, not accumulated.
	res, err := col.Search(ctx, structuredPlan(t, query.FieldFilterInput{Field: "retries", Condition: "Equals", Value: "3"}))
	if err != nil {
		t.Fatalf("search old value: %v", err)
	}
	if res.TotalRecords != 0 {
		t.Fatalf("stale index entry survived update: %d", res.TotalRecords)
	}
	res, err = col.Search(ctx, structuredPlan(t, query.FieldFilterInput{Field: "retries", Condition: "Equals", Value: "5"}))
	if err != nil {
		t.Fatalf("search new value: %v", err)
	}
	if res.TotalRecords != 1 {
		t.Fatalf("expected updated value to be indexed once, got %d", res.TotalRecords)
	}
}

func TestLockedIngestSurfacesHolder(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "locked", CreateCollectionOptions{})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if err := db.locks.Acquire(ctx, col.Info().ID, "doc-A", "other-host", time.Minute); err != nil {
		t.Fatalf("pre-acquire lock: %v", err)
	}

	_, err = col.Ingest(ctx, IngestRequest{Name: "doc-A", Body: []byte(`{"x":1}`)})
	if KindOf(err) != KindDocumentLocked {
		t.Fatalf("expected DocumentLocked, got %v", err)
	}
	var derr *Error
	if !errors.As(err, &derr) || derr.Lock == nil || derr.Lock.Hostname != "other-host" {
		t.Fatalf("expected lock metadata with holder hostname, got %+v", derr)
	}

	if err := db.locks.Release(ctx, col.Info().ID, "doc-A"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := col.Ingest(ctx, IngestRequest{Name: "doc-A", Body: []byte(`{"x":1}`)}); err != nil {
		t.Fatalf("ingest after release: %v", err)
	}
}

func TestRebuildDropsUnusedTables(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "rebuildme", CreateCollectionOptions{IndexingMode: IndexingAll})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := col.Ingest(ctx, IngestRequest{Body: []byte(`{"a":1,"b":2}`)}); err != nil {
		t.Fatalf("ingest doc 1: %v", err)
	}
	if _, err := col.Ingest(ctx, IngestRequest{Body: []byte(`{"a":3,"b":4}`)}); err != nil {
		t.Fatalf("ingest doc 2: %v", err)
	}

	stats, err := col.SetIndexing(ctx, IndexingSelective, []string{"a"}, true, true)
	if err != nil {
		t.Fatalf("set indexing with rebuild: %v", err)
	}
	if stats == nil || !stats.Success {
		t.Fatalf("expected successful rebuild, got %+v", stats)
	}
	if stats.DocumentsProcessed != 2 {
		t.Fatalf("expected 2 documents processed, got %d", stats.DocumentsProcessed)
	}
	if stats.IndexesDropped != 1 {
		t.Fatalf("expected table for b to be dropped, got %d drops", stats.IndexesDropped)
	}

	tables, err := db.ListIndexTables(ctx)
	if err != nil {
		t.Fatalf("list index tables: %v", err)
	}
	for _, tb := range tables {
		if tb.FieldPath == "b" {
			t.Fatal("mapping for b should have been removed")
		}
	}

	res, err := col.Search(ctx, structuredPlan(t, query.FieldFilterInput{Field: "a", Condition: "IsNotNull"}))
	if err != nil {
		t.Fatalf("search a after rebuild: %v", err)
	}
	if res.TotalRecords != 2 {
		t.Fatalf("expected both documents indexed under a, got %d", res.TotalRecords)
	}

	_, err = col.Search(ctx, structuredPlan(t, query.FieldFilterInput{Field: "b", Condition: "IsNotNull"}))
	if KindOf(err) != KindFieldNotIndexed {
		t.Fatalf("expected FieldNotIndexed for b, got %v", err)
	}
}

func TestDeleteCollectionCascades(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "doomed", CreateCollectionOptions{
		Labels:       []string{"env:test"},
		Tags:         map[string]string{"team": "core"},
		IndexingMode: IndexingAll,
	})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	collID := col.Info().ID

	if _, err := col.Ingest(ctx, IngestRequest{
		Name:   "d1",
		Body:   []byte(`{"k":"v"}`),
		Labels: []string{"keep"},
		Tags:   map[string]string{"t": "1"},
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if err := db.DeleteCollection(ctx, collID); err != nil {
		t.Fatalf("delete collection: %v", err)
	}

	if _, err := db.GetCollection(ctx, collID); KindOf(err) != KindNotFound {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}

	ph := db.store.Dialect().Placeholder(1)
	for _, table := range []string{"documents", "fieldconstraints", "indexedfields", "objectlocks", "collectionlabels"} {
		row, err := db.store.QueryRow(ctx, "SELECT COUNT(*) FROM "+table+" WHERE collection_id = "+ph, collID)
		if err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		var n int
		if err := row.Scan(&n); err != nil {
			t.Fatalf("scan %s count: %v", table, err)
		}
		if n != 0 {
			t.Fatalf("expected zero %s rows after cascade, got %d", table, n)
		}
	}

	// The per-field index tables survive (they are process-wide) but
	// must hold no rows for the deleted collection's documents.
	entries, _, err := db.TableEntries(ctx, mustTableName(t, db, "k"), 0, 100)
	if err != nil {
		t.Fatalf("table entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no index rows after cascade, got %d", len(entries))
	}
}

func mustTableName(t *testing.T, db *Database, fieldPath string) string {
	t.Helper()
	name, ok, err := db.index.TableForPath(context.Background(), fieldPath)
	if err != nil || !ok {
		t.Fatalf("resolve table for %s: ok=%v err=%v", fieldPath, ok, err)
	}
	return name
}

func TestSearchPaginationBoundaries(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "paged", CreateCollectionOptions{IndexingMode: IndexingAll})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := col.Ingest(ctx, IngestRequest{Body: []byte(`{"kind":"item"}`)}); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	plan := structuredPlan(t, query.FieldFilterInput{Field: "kind", Condition: "Equals", Value: "item"})
	plan.Skip = 10
	res, err := col.Search(ctx, plan)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Documents) != 0 || !res.EndOfResults {
		t.Fatalf("skip past total should return an empty final page, got %d docs end=%v", len(res.Documents), res.EndOfResults)
	}
	if res.TotalRecords != 3 {
		t.Fatalf("expected total 3, got %d", res.TotalRecords)
	}

	plan = structuredPlan(t, query.FieldFilterInput{Field: "kind", Condition: "Equals", Value: "item"})
	plan.Skip = 1
	plan.MaxResults = 1
	res, err = col.Search(ctx, plan)
	if err != nil {
		t.Fatalf("search page 2: %v", err)
	}
	if len(res.Documents) != 1 || res.EndOfResults || res.RecordsRemaining != 1 {
		t.Fatalf("middle page: docs=%d end=%v remaining=%d", len(res.Documents), res.EndOfResults, res.RecordsRemaining)
	}
}

func TestSchemaInternedAcrossDocuments(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "shapes", CreateCollectionOptions{IndexingMode: IndexingNone})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	a, err := col.Ingest(ctx, IngestRequest{Body: []byte(`{"x":1,"y":"p"}`)})
	if err != nil {
		t.Fatalf("ingest a: %v", err)
	}
	b, err := col.Ingest(ctx, IngestRequest{Body: []byte(`{"y":"q","x":2}`)})
	if err != nil {
		t.Fatalf("ingest b: %v", err)
	}
	if a.Document.SchemaID != b.Document.SchemaID {
		t.Fatalf("identical shapes should share a schema, got %s vs %s", a.Document.SchemaID, b.Document.SchemaID)
	}

	c, err := col.Ingest(ctx, IngestRequest{Body: []byte(`{"x":"now-a-string","y":"r"}`)})
	if err != nil {
		t.Fatalf("ingest c: %v", err)
	}
	if c.Document.SchemaID == a.Document.SchemaID {
		t.Fatal("type change should produce a different schema")
	}

	elements, err := db.GetSchemaElements(ctx, a.Document.SchemaID)
	if err != nil {
		t.Fatalf("get elements: %v", err)
	}
	if len(elements) != 2 {
		t.Fatalf("expected 2 schema elements, got %d", len(elements))
	}
}

func TestDeleteDocumentRemovesEverything(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "gone", CreateCollectionOptions{IndexingMode: IndexingAll})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	result, err := col.Ingest(ctx, IngestRequest{
		Name:   "victim",
		Body:   []byte(`{"status":"active"}`),
		Labels: []string{"l1"},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if err := col.Delete(ctx, result.Document.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, _, err := col.Get(ctx, result.Document.ID); KindOf(err) != KindNotFound {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
	res, err := col.Search(ctx, structuredPlan(t, query.FieldFilterInput{Field: "status", Condition: "Equals", Value: "active"}))
	if err != nil {
		t.Fatalf("search after delete: %v", err)
	}
	if res.TotalRecords != 0 {
		t.Fatalf("expected no index matches after delete, got %d", res.TotalRecords)
	}
	ok, err := col.content.Exists(col.Info().ID, result.Document.ID)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatal("body file should be gone after delete")
	}
}

func TestSQLSubsetEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "sqlpeople", CreateCollectionOptions{IndexingMode: IndexingAll})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	bodies := []string{
		`{"first":"Joel","age":42}`,
		`{"first":"Jane","age":25}`,
		`{"first":"Mary","age":50}`,
	}
	names := []string{"joel", "jane", "mary"}
	for i, b := range bodies {
		if _, err := col.Ingest(ctx, IngestRequest{Name: names[i], Body: []byte(b)}); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	plan, err := query.ParseSQL(`SELECT * FROM documents WHERE age > 30 AND first LIKE 'J%' ORDER BY name ASC LIMIT 10`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, err := col.Search(ctx, plan)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.TotalRecords != 1 {
		t.Fatalf("expected one match (Joel), got %d", res.TotalRecords)
	}
	if res.Documents[0].Document.Name != "joel" {
		t.Fatalf("expected joel, got %s", res.Documents[0].Document.Name)
	}
}

func TestLabelAndTagPreFilter(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	col, err := db.CreateCollection(ctx, "labeled", CreateCollectionOptions{IndexingMode: IndexingAll})
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if _, err := col.Ingest(ctx, IngestRequest{
		Body: []byte(`{"kind":"a"}`), Labels: []string{"prod", "eu"},
	}); err != nil {
		t.Fatalf("ingest 1: %v", err)
	}
	if _, err := col.Ingest(ctx, IngestRequest{
		Body: []byte(`{"kind":"a"}`), Labels: []string{"prod"},
	}); err != nil {
		t.Fatalf("ingest 2: %v", err)
	}

	plan := structuredPlan(t, query.FieldFilterInput{Field: "kind", Condition: "Equals", Value: "a"})
	plan.Labels = []string{"prod", "eu"}
	res, err := col.Search(ctx, plan)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.TotalRecords != 1 {
		t.Fatalf("documents must carry ALL requested labels; got %d matches", res.TotalRecords)
	}
}
