package storage

import (
	"strings"
	"testing"
)

func TestSanitizeIdentifier_RestrictsCharset(t *testing.T) {
	got := SanitizeIdentifier("user.address.city", 63)
	if got != "user_address_city" {
		t.Fatalf("got %q", got)
	}
	for _, r := range SanitizeIdentifier(`a-b;DROP TABLE x`, 63) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			t.Fatalf("character %q escaped sanitization", r)
		}
	}
}

func TestSanitizeIdentifier_RejectsReservedPrefixes(t *testing.T) {
	for _, ident := range []string{"pg_catalog", "sqlite_master", "sys_thing", "information_schema_x"} {
		got := SanitizeIdentifier(ident, 63)
		lower := strings.ToLower(got)
		for _, p := range reservedPrefixes {
			if strings.HasPrefix(lower, p) {
				t.Fatalf("%q sanitized to %q, which keeps reserved prefix %q", ident, got, p)
			}
		}
	}
}

func TestSanitizeIdentifier_BoundsLengthDeterministically(t *testing.T) {
	long := strings.Repeat("abc.def.", 20)
	a := SanitizeIdentifier(long, 63)
	b := SanitizeIdentifier(long, 63)
	if a != b {
		t.Fatalf("truncation is not deterministic: %q vs %q", a, b)
	}
	if len(a) > 63 {
		t.Fatalf("length %d exceeds bound", len(a))
	}

	// Two long inputs that share a 63-byte prefix must not collide.
	other := long[:len(long)-1] + "x"
	if SanitizeIdentifier(other, 63) == a {
		t.Fatal("distinct long identifiers collided after truncation")
	}
}

func TestDeriveTableName_DeterministicAndDistinct(t *testing.T) {
	a1 := DeriveTableName("user.age", 63)
	a2 := DeriveTableName("user.age", 63)
	if a1 != a2 {
		t.Fatalf("derivation not deterministic: %q vs %q", a1, a2)
	}
	if !strings.HasPrefix(a1, "idx_") {
		t.Fatalf("expected idx_ prefix, got %q", a1)
	}

	suffixed := DeriveTableNameWithCollisionSuffix("user.age", 63)
	if suffixed == a1 {
		t.Fatal("collision suffix produced the same name")
	}
	if len(suffixed) > 63 {
		t.Fatalf("suffixed name exceeds bound: %d", len(suffixed))
	}
}
