package indexmgr

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/docvault-db/docvault/internal/config"
	"github.com/docvault-db/docvault/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "indexmgr.db")
	s, err := storage.Open(context.Background(), config.StorageConfig{Dialect: config.DialectSQLite, DSN: dsn}, config.PoolConfig{MaxConnections: 5}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Bootstrap(); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureTable_ProcessWideAcrossCollections(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	mgr := New(store)

	// Two "collections" indexing the same field path must share one
	// physical table.
	t1, err := mgr.EnsureTable(ctx, "age")
	if err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	t2, err := mgr.EnsureTable(ctx, "age")
	if err != nil {
		t.Fatalf("ensure table again: %v", err)
	}
	if t1 != t2 {
		t.Fatalf("expected same table for repeated EnsureTable(%q), got %q and %q", "age", t1, t2)
	}

	other, err := mgr.EnsureTable(ctx, "name")
	if err != nil {
		t.Fatalf("ensure table for distinct path: %v", err)
	}
	if other == t1 {
		t.Fatal("expected distinct paths to derive distinct table names")
	}
}

func TestInsertSearchDelete_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	mgr := New(store)

	table, err := mgr.EnsureTable(ctx, "age")
	if err != nil {
		t.Fatalf("ensure table: %v", err)
	}

	n := 42.0
	err = mgr.InsertValues(ctx, map[string][]Entry{
		table: {{DocumentID: "doc-1", Value: "42", Numeric: &n}},
	})
	if err != nil {
		t.Fatalf("insert values: %v", err)
	}

	ids, err := mgr.Search(ctx, table, Filter{Condition: OpEqual, Value: "42", Numeric: &n})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(ids) != 1 || ids[0] != "doc-1" {
		t.Fatalf("expected [doc-1], got %v", ids)
	}

	if err := mgr.DeleteForDocument(ctx, table, "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ids, err = mgr.Search(ctx, table, Filter{Condition: OpEqual, Value: "42", Numeric: &n})
	if err != nil {
		t.Fatalf("search after delete: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no rows after delete, got %v", ids)
	}
}

func TestDropUnused_RemovesStaleMappings(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	mgr := New(store)

	if _, err := mgr.EnsureTable(ctx, "a"); err != nil {
		t.Fatalf("ensure a: %v", err)
	}
	if _, err := mgr.EnsureTable(ctx, "b"); err != nil {
		t.Fatalf("ensure b: %v", err)
	}

	dropped, err := mgr.DropUnused(ctx, []string{"b"})
	if err != nil {
		t.Fatalf("drop unused: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", dropped)
	}

	if _, ok, err := mgr.lookupMapping(ctx, "b"); err != nil || ok {
		t.Fatalf("expected mapping for b to be gone, ok=%v err=%v", ok, err)
	}
	if _, ok, err := mgr.lookupMapping(ctx, "a"); err != nil || !ok {
		t.Fatalf("expected mapping for a to remain, ok=%v err=%v", ok, err)
	}
}

func TestEscapeLike_EscapesMetacharacters(t *testing.T) {
	got := escapeLike(`50%_off\`)
	want := `50\%\_off\\`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
