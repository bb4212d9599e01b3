/*
errors.go - Centralized error types for the inventory core

PURPOSE:
  All domain error kinds in one place. Every user-visible failure is a
  message string; the API boundary renders any of these errors as
  {success: false, message}. Storage failures are wrapped, never
  swallowed.

ERROR CATEGORIES:
  1. Validation errors - blank/missing fields, non-positive quantities,
     invalid variants
  2. Not-found errors - referenced drug/source/prescription is absent
  3. Capacity errors  - insufficient stock, surfaced before any write
  4. Duplicate errors - unique-name/unique-binding collisions

USAGE:
  if errors.Is(err, inventory.ErrInsufficientStock) { ... }

SEE ALSO:
  - docstore/errors.go: Store-level errors these often wrap
*/
package inventory

import (
	"errors"
	"fmt"

	"github.com/herbcabinet/inventory-engine/docstore"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique name or binding already exists.
	ErrDuplicate = errors.New("record already exists")

	// ErrNoStockIns is returned when a release is attempted for a drug with
	// no stock-in history at all.
	ErrNoStockIns = errors.New("no stock-in records, cannot release")

	// ErrInsufficientStock is returned when a release exceeds current stock.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrEmptyDrugList is returned for a prescription without any lines.
	ErrEmptyDrugList = errors.New("prescription drug list must not be empty")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string // "drug", "source", "prescription", ...
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateError identifies the colliding record.
type DuplicateError struct {
	Kind string
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// CapacityError details a stock shortage.
type CapacityError struct {
	Drug      string
	Requested float64
	Available float64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("insufficient stock of %s: have %.2fg, requested %.2fg",
		e.Drug, e.Available, e.Requested)
}

func (e *CapacityError) Unwrap() error { return ErrInsufficientStock }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether err is caused by the caller's input rather
// than a storage fault.
func IsClientError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrNoStockIns) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrEmptyDrugList)
}

// IsNotFound reports whether err indicates a missing record at either the
// domain or the store level.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || docstore.IsNotFound(err)
}

// =============================================================================
// RESULT - the boundary success/message contract
// =============================================================================

// Result is the user-facing outcome shape: a flag plus a message string.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// OK builds a success result.
func OK(message string) Result { return Result{Success: true, Message: message} }

// Failure renders err as a boundary result. The message is always a plain
// string, never a structured code.
func Failure(err error) Result {
	if err == nil {
		return Result{Success: true}
	}
	return Result{Success: false, Message: err.Error()}
}
