/*
errors.go - Centralized error types for the document store

PURPOSE:
  All store-level errors in one place. Domain packages wrap these with
  additional context; boundaries ultimately render them as
  {success: false, message} payloads.

USAGE:
  if errors.Is(err, docstore.ErrNotFound) { ... }

SEE ALSO:
  - store.go: Operations returning these errors
*/
package docstore

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a document lookup matches nothing.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateIndexValue is returned when a write would place a second
	// document under a unique index value.
	ErrDuplicateIndexValue = errors.New("duplicate unique index value")

	// ErrUnknownCollection is returned for operations against a collection
	// that is not declared in Collections.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrMissingID is returned when Update receives a document without an id.
	ErrMissingID = errors.New("document has no id")

	// ErrStoreClosed is returned for operations submitted after Close.
	ErrStoreClosed = errors.New("store is closed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicateIndexError identifies the index a write collided with.
type DuplicateIndexError struct {
	Collection string
	Field      string
	Value      string
}

func (e *DuplicateIndexError) Error() string {
	return fmt.Sprintf("%s.%s already holds value %q", e.Collection, e.Field, e.Value)
}

func (e *DuplicateIndexError) Unwrap() error { return ErrDuplicateIndexValue }

// StorageError wraps a backend failure with the operation that hit it.
// Storage failures are never swallowed; they propagate to the caller.
type StorageError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s on %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsNotFound reports whether err indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate reports whether err indicates a unique index collision.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateIndexValue)
}
