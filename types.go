package docvault

import "github.com/docvault-db/docvault/internal/flatten"

// CollectionInfo describes a collection, the owner of documents,
// constraints, and the indexed field list.
type CollectionInfo struct {
	ID                    string
	Name                  string
	Description           string
	DocumentsDirectory    string
	Labels                []string
	Tags                  map[string]string
	SchemaEnforcementMode SchemaEnforcementMode
	IndexingMode          IndexingMode
	CreatedUTC            string
	LastUpdateUTC         string
}

// DocumentInfo is one row of the documents table plus the derived
// metadata the content store and flattener compute.
type DocumentInfo struct {
	ID            string
	CollectionID  string
	SchemaID      string
	Name          string
	ContentLength int
	SHA256        string
	CreatedUTC    string
	LastUpdateUTC string
}

// SchemaInfo is an interned structural fingerprint.
type SchemaInfo struct {
	ID            string
	Hash          string
	Name          string
	CreatedUTC    string
	LastUpdateUTC string
}

// FieldConstraint is a declared validation rule against one field path
// in a collection. At most one exists per
// (collection, field path).
type FieldConstraint struct {
	FieldPath        string
	DataType         flatten.DataType
	Required         bool
	Nullable         bool
	RegexPattern     string
	MinValue         *float64
	MaxValue         *float64
	MinLength        *int
	MaxLength        *int
	AllowedValues    []string
	ArrayElementType flatten.DataType
	HasArrayElemType bool
}

// LockInfoRecord mirrors the ObjectLock row; LockInfo in
// errors.go is the subset surfaced to API callers on a 409.
type LockInfoRecord struct {
	CollectionID string
	DocumentName string
	Hostname     string
	CreatedUTC   string
}
