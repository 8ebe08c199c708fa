// Package dberrors defines the sentinel errors returned by every layer of
// docbase, from the file journal up to the operations facade. Errors are
// never swallowed by the core; callers compare against these sentinels with
// errors.Is, or unwrap an *Error for the collection name that triggered it.
package dberrors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every mutating or loading operation that fails reports
// one of these (optionally wrapped in *Error for context).
var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionReadOnly = errors.New("collection is read-only")

	ErrDocumentNotFound = errors.New("document not found")
	ErrDuplicateID      = errors.New("duplicate document id")
	ErrInvalidDocument  = errors.New("invalid document")

	ErrInvalidQuery = errors.New("invalid query")

	ErrCorruptCollection     = errors.New("corrupt collection file")
	ErrSchemaHeaderMissing   = errors.New("schema header missing")
	ErrSchemaMigrationFailed = errors.New("schema migration failed")

	ErrCipher        = errors.New("cipher error")
	ErrBadDescriptor = errors.New("bad descriptor")

	ErrIO = errors.New("io error")

	ErrReentrantMutation = errors.New("reentrant mutation")
)

// Error wraps a sentinel with the collection it occurred on and, for
// CorruptCollection, the offending line number.
type Error struct {
	Collection string
	Line       int // 1-indexed; 0 if not applicable
	Err        error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("collection %q line %d: %v", e.Collection, e.Line, e.Err)
	}
	if e.Collection != "" {
		return fmt.Sprintf("collection %q: %v", e.Collection, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap annotates a sentinel error with the collection name it occurred on.
func Wrap(collection string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Collection: collection, Err: err}
}

// WrapLine annotates a sentinel error with the collection name and the
// 1-indexed line number of the offending record (used by CorruptCollection).
func WrapLine(collection string, line int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Collection: collection, Line: line, Err: err}
}

// IO wraps an underlying filesystem error as ErrIO, preserving it for
// errors.Unwrap/errors.Is chains.
func IO(collection string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Collection: collection, Err: fmt.Errorf("%w: %v", ErrIO, err)}
}
