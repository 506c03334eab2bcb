package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// reservedPrefixes are table-name prefixes owned by the relational
// engines themselves; a derived index-table name must never collide
// with them.
var reservedPrefixes = []string{"pg_", "sqlite_", "information_schema", "sys", "mysql_"}

// SanitizeIdentifier restricts ident to [A-Za-z0-9_], bounds its length
// to maxLen, and rejects reserved prefixes. It is used for every
// identifier that must be interpolated directly into SQL text (table
// and index names) — caller-supplied scalar values must never take
// this path; they belong in parameterized statements instead.
func SanitizeIdentifier(ident string, maxLen int) string {
	var b strings.Builder
	for _, r := range ident {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "_"
	}
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(strings.ToLower(out), p) {
			out = "f_" + out
			break
		}
	}
	if len(out) > maxLen {
		// Keep the result stable and collision-resistant by suffixing a
		// short hash of the original, truncated-away tail.
		sum := sha256.Sum256([]byte(ident))
		suffix := "_" + hex.EncodeToString(sum[:])[:8]
		keep := maxLen - len(suffix)
		if keep < 1 {
			keep = 1
		}
		out = out[:keep] + suffix
	}
	return out
}

// DeriveTableName computes the physical table name for an indexed field
// path. It is deterministic for a given (fieldPath, maxLen): the same
// path always derives the same candidate name, so IndexTableMapping's
// "select-then-insert" pattern in EnsureTable can detect true collisions
// (two distinct paths sanitizing to the same name) by re-deriving and
// comparing, rather than relying on random suffixes.
func DeriveTableName(fieldPath string, maxLen int) string {
	base := "idx_" + SanitizeIdentifier(fieldPath, maxLen-9)
	return SanitizeIdentifier(base, maxLen)
}

// DeriveTableNameWithCollisionSuffix is used when DeriveTableName's
// result is already taken by a different field path; it appends a short
// hash of fieldPath to disambiguate deterministically.
func DeriveTableNameWithCollisionSuffix(fieldPath string, maxLen int) string {
	sum := sha256.Sum256([]byte(fieldPath))
	suffix := "_" + hex.EncodeToString(sum[:])[:8]
	base := "idx_" + SanitizeIdentifier(fieldPath, maxLen-9-len(suffix))
	candidate := base + suffix
	if len(candidate) > maxLen {
		candidate = candidate[:maxLen]
	}
	return candidate
}
