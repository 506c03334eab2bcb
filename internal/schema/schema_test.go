package schema

import (
	"testing"

	"github.com/docvault-db/docvault/internal/flatten"
)

func TestDeduceElements_FirstSeenOrderAndNullability(t *testing.T) {
	entries := flatten.Entries{
		{Path: "name", DataType: flatten.TypeString, Value: "ada"},
		{Path: "tags", DataType: flatten.TypeNull, Value: "null"},
		{Path: "tags", DataType: flatten.TypeString, Value: "x"},
	}

	elements := deduceElements(entries)
	if len(elements) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(elements))
	}
	if elements[0].Path != "name" || elements[0].Position != 0 {
		t.Fatalf("element 0: got %+v", elements[0])
	}
	if elements[1].Path != "tags" || elements[1].Position != 1 {
		t.Fatalf("element 1: got %+v", elements[1])
	}
	if !elements[1].Nullable {
		t.Fatal("expected tags to be nullable (seen null at least once)")
	}
	if elements[1].DataType != flatten.TypeString {
		t.Fatalf("expected tags final type to be string, got %s", elements[1].DataType)
	}
}
