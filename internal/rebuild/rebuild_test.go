package rebuild

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/docvault-db/docvault/internal/config"
	"github.com/docvault-db/docvault/internal/content"
	"github.com/docvault-db/docvault/internal/indexmgr"
	"github.com/docvault-db/docvault/internal/storage"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(context.Background(),
		config.StorageConfig{Dialect: config.DialectSQLite, DSN: filepath.Join(dir, "rebuild.db")},
		config.PoolConfig{MaxConnections: 5}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cs, err := content.New(filepath.Join(dir, "bodies"))
	if err != nil {
		t.Fatalf("content store: %v", err)
	}
	return Deps{Store: store, Index: indexmgr.New(store), Content: cs}
}

func seedDocument(t *testing.T, deps Deps, collectionID, docID, body string) {
	t.Helper()
	if _, err := deps.Content.Put(collectionID, docID, []byte(body)); err != nil {
		t.Fatalf("put body %s: %v", docID, err)
	}
	ph := deps.Store.Dialect().Placeholder
	err := deps.Store.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(),
			fmt.Sprintf("INSERT INTO documents (id, collection_id, schema_id, name, content_length, sha256, created_utc, last_update_utc) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
				ph(1), ph(2), ph(3), ph(4), ph(5), ph(6), ph(7), ph(8)),
			docID, collectionID, "schema-1", nil, len(body), nil, "2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z")
		return err
	})
	if err != nil {
		t.Fatalf("insert document row %s: %v", docID, err)
	}
}

func TestRun_AllModeIndexesEveryLeaf(t *testing.T) {
	ctx := context.Background()
	deps := testDeps(t)

	seedDocument(t, deps, "c1", "d1", `{"a":1,"b":"x"}`)
	seedDocument(t, deps, "c1", "d2", `{"a":2,"b":"y"}`)

	stats, err := Run(ctx, deps, Params{CollectionID: "c1", IndexingMode: ModeAll, Concurrency: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !stats.Success || stats.DocumentsProcessed != 2 {
		t.Fatalf("stats: %+v", stats)
	}
	if stats.ValuesInserted != 4 {
		t.Fatalf("expected 4 values inserted, got %d", stats.ValuesInserted)
	}
	if stats.IndexesCreated != 2 {
		t.Fatalf("expected 2 tables created, got %d", stats.IndexesCreated)
	}

	table, ok, err := deps.Index.TableForPath(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("table for a: ok=%v err=%v", ok, err)
	}
	ids, err := deps.Index.Search(ctx, table, indexmgr.Filter{Condition: indexmgr.OpIsNotNull})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected both documents under a, got %v", ids)
	}
}

func TestRun_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	deps := testDeps(t)
	seedDocument(t, deps, "c1", "d1", `{"a":1}`)

	params := Params{CollectionID: "c1", IndexingMode: ModeAll, Concurrency: 1}
	if _, err := Run(ctx, deps, params); err != nil {
		t.Fatalf("first run: %v", err)
	}
	stats, err := Run(ctx, deps, params)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.ValuesInserted != 1 {
		t.Fatalf("second run should replace, not accumulate: %d", stats.ValuesInserted)
	}

	table, _, _ := deps.Index.TableForPath(ctx, "a")
	ids, err := deps.Index.Search(ctx, table, indexmgr.Filter{Condition: indexmgr.OpIsNotNull})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected one row after repeated rebuild, got %v", ids)
	}
}

func TestRun_SelectiveWithDropUnused(t *testing.T) {
	ctx := context.Background()
	deps := testDeps(t)

	seedDocument(t, deps, "c1", "d1", `{"a":1,"b":2}`)
	seedDocument(t, deps, "c1", "d2", `{"a":3,"b":4}`)

	if _, err := Run(ctx, deps, Params{CollectionID: "c1", IndexingMode: ModeAll, Concurrency: 1}); err != nil {
		t.Fatalf("initial run: %v", err)
	}

	stats, err := Run(ctx, deps, Params{
		CollectionID:    "c1",
		IndexingMode:    ModeSelective,
		SelectiveFields: []string{"a"},
		DropUnused:      true,
		Concurrency:     1,
	})
	if err != nil {
		t.Fatalf("selective run: %v", err)
	}
	if stats.IndexesDropped != 1 {
		t.Fatalf("expected table for b dropped, got %d drops", stats.IndexesDropped)
	}
	if _, ok, err := deps.Index.TableForPath(ctx, "b"); err != nil || ok {
		t.Fatalf("mapping for b should be gone: ok=%v err=%v", ok, err)
	}
	if _, ok, err := deps.Index.TableForPath(ctx, "a"); err != nil || !ok {
		t.Fatalf("mapping for a should remain: ok=%v err=%v", ok, err)
	}
}

func TestRun_BadBodyIsCollectedNotFatal(t *testing.T) {
	ctx := context.Background()
	deps := testDeps(t)

	seedDocument(t, deps, "c1", "good", `{"a":1}`)
	seedDocument(t, deps, "c1", "bad", `{not json`)

	stats, err := Run(ctx, deps, Params{CollectionID: "c1", IndexingMode: ModeAll, Concurrency: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !stats.Success {
		t.Fatalf("per-document parse failures must not abort the rebuild: %+v", stats)
	}
	if stats.DocumentsProcessed != 1 || len(stats.Errors) != 1 {
		t.Fatalf("expected 1 processed and 1 error, got %+v", stats)
	}
}
