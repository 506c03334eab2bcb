package docvault

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a docvault error for the purposes of wire status
// codes the HTTP layer assigns.
type ErrorKind string

const (
	KindInvalidInput           ErrorKind = "InvalidInput"
	KindSchemaValidationFailed ErrorKind = "SchemaValidationFailed"
	KindNotFound               ErrorKind = "NotFound"
	KindDocumentLocked         ErrorKind = "DocumentLocked"
	KindFieldNotIndexed        ErrorKind = "FieldNotIndexed"
	KindStorageFailure         ErrorKind = "StorageFailure"
	KindCancelled              ErrorKind = "Cancelled"
)

// Error is the error type returned by every docvault operation that can
// fail in a caller-distinguishable way.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error

	// Lock is populated only when Kind == KindDocumentLocked.
	Lock *LockInfo

	// FieldErrors is populated only when Kind == KindSchemaValidationFailed.
	FieldErrors []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// LockInfo describes a held ObjectLock, returned with KindDocumentLocked errors.
type LockInfo struct {
	CollectionID string
	DocumentName string
	Hostname     string
	CreatedUTC   string
}

func newErr(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ErrInvalidInput builds a KindInvalidInput error.
func ErrInvalidInput(format string, args ...interface{}) error {
	return newErr(KindInvalidInput, nil, format, args...)
}

// ErrNotFound builds a KindNotFound error.
func ErrNotFound(format string, args ...interface{}) error {
	return newErr(KindNotFound, nil, format, args...)
}

// ErrFieldNotIndexed builds a KindFieldNotIndexed error.
func ErrFieldNotIndexed(field string) error {
	return newErr(KindFieldNotIndexed, nil, "field %q is not indexed", field)
}

// ErrStorageFailure wraps a lower-level storage error.
func ErrStorageFailure(cause error, format string, args ...interface{}) error {
	return newErr(KindStorageFailure, cause, format, args...)
}

// ErrCancelled wraps a context cancellation.
func ErrCancelled(cause error) error {
	return newErr(KindCancelled, cause, "operation cancelled")
}

// ErrDocumentLocked builds a KindDocumentLocked error carrying lock metadata.
func ErrDocumentLocked(info LockInfo) error {
	return &Error{Kind: KindDocumentLocked, Message: "document is locked", Lock: &info}
}

// ErrSchemaValidationFailed builds a KindSchemaValidationFailed error carrying
// the list of per-field messages.
func ErrSchemaValidationFailed(fieldErrors []string) error {
	return &Error{Kind: KindSchemaValidationFailed, Message: "schema validation failed", FieldErrors: fieldErrors}
}

// KindOf extracts the ErrorKind from err, or "" if err is not a *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
