package content

import (
	"errors"
	"testing"
)

func TestStore_PutGetRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	hash, err := s.Put("coll-1", "doc-abc123", []byte(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}

	got, err := s.Get("coll-1", "doc-abc123")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("body round-trip: got %q", got)
	}
}

func TestStore_GetMissingBodyIsFatal(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Get("coll-1", "does-not-exist")
	if !errors.Is(err, ErrMissingBody) {
		t.Fatalf("expected ErrMissingBody, got %v", err)
	}
}

func TestStore_ExistsAndDelete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put("coll-1", "doc-1", []byte("x")); err != nil {
		t.Fatal(err)
	}

	ok, err := s.Exists("coll-1", "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected body to exist")
	}

	if err := s.Delete("coll-1", "doc-1"); err != nil {
		t.Fatal(err)
	}
	ok, err = s.Exists("coll-1", "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected body to be gone after delete")
	}

	// Deleting an already-absent body is not an error.
	if err := s.Delete("coll-1", "doc-1"); err != nil {
		t.Fatalf("delete of absent body: %v", err)
	}
}

func TestStore_Orphans(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put("coll-1", "doc-keep", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Put("coll-1", "doc-orphan", []byte("y")); err != nil {
		t.Fatal(err)
	}

	orphans, err := s.Orphans(map[string]bool{"doc-keep": true})
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0] != "doc-orphan" {
		t.Fatalf("expected [doc-orphan], got %v", orphans)
	}
}
