package locks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/docvault-db/docvault/internal/config"
	"github.com/docvault-db/docvault/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "locks.db")
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

func TestAcquire_SecondCallerSeesHeld(t *testing.T) {
	ctx := context.Background()
	mgr := New(openTestStore(t))

	if err := mgr.Acquire(ctx, "coll-1", "doc-A", "host-1", time.Minute); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	err := mgr.Acquire(ctx, "coll-1", "doc-A", "host-2", time.Minute)
	var held *ErrHeld
	if !errors.As(err, &held) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
	if held.Held.Hostname != "host-1" {
		t.Fatalf("expected holder host-1, got %s", held.Held.Hostname)
	}
}

func TestAcquire_ExpiredLockIsStolen(t *testing.T) {
	ctx := context.Background()
	mgr := New(openTestStore(t))

	if err := mgr.Acquire(ctx, "coll-1", "doc-A", "host-1", time.Millisecond); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if err := mgr.Acquire(ctx, "coll-1", "doc-A", "host-2", time.Millisecond); err != nil {
		t.Fatalf("expected expired lock to be stolen, got %v", err)
	}
}

func TestRelease_AllowsReacquire(t *testing.T) {
	ctx := context.Background()
	mgr := New(openTestStore(t))

	if err := mgr.Acquire(ctx, "coll-1", "doc-A", "host-1", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := mgr.Release(ctx, "coll-1", "doc-A"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := mgr.Acquire(ctx, "coll-1", "doc-A", "host-2", time.Minute); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	mgr := New(openTestStore(t))

	if err := mgr.Acquire(ctx, "coll-1", "doc-old", "host-1", time.Minute); err != nil {
		t.Fatalf("acquire old: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := mgr.Acquire(ctx, "coll-1", "doc-new", "host-1", time.Minute); err != nil {
		t.Fatalf("acquire new: %v", err)
	}

	n, err := mgr.Sweep(ctx, 15*time.Millisecond)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
}
