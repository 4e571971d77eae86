/*
errors.go - Centralized error types for the expense engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Codecs and the HTTP layer classify failures with errors.Is against
  the two umbrella sentinels below.

ERROR CATEGORIES:
  1. Validation errors - Out-of-range index, unknown category, bad amount,
     unparseable date. Local and recoverable; the caller decides.
  2. I/O errors - File open/read/write/copy/delete failures. Fatal for the
     operation in progress.

USAGE:
  if err := store.Edit(7, e); finance.IsValidation(err) {
      var idx *finance.IndexError
      errors.As(err, &idx) // idx.Index, idx.Len
  }

SEE ALSO:
  - expense.go: Returns IndexError
  - persist/codec.go: Returns IOError
  - transfer/import.go: Collects per-line validation failures
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is matched by every validation failure below.
	ErrValidation = errors.New("validation failed")

	// ErrIO is matched by every IOError.
	ErrIO = errors.New("i/o failure")

	// ErrIndexOutOfRange is returned for edit/delete outside [0, len).
	ErrIndexOutOfRange = errors.New("invalid expense index")

	// ErrUnknownExpense is returned when an ExpenseID is not in the store.
	ErrUnknownExpense = errors.New("unknown expense")

	// ErrInvalidCategory is returned when a category is not predefined.
	ErrInvalidCategory = errors.New("invalid category")

	// ErrInvalidAmount is returned for unparseable, negative or (on import)
	// non-positive amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDate is returned for unparseable dates and month keys.
	ErrInvalidDate = errors.New("invalid date format")

	// ErrFieldCount is returned when a delimited line has the wrong arity.
	ErrFieldCount = errors.New("invalid number of fields")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// IndexError reports a positional access outside the store bounds.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%v: %d (len %d)", ErrIndexOutOfRange, e.Index, e.Len)
}

func (e *IndexError) Unwrap() []error {
	return []error{ErrIndexOutOfRange, ErrValidation}
}

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{e.Err, ErrValidation}
}

// IOError wraps a filesystem failure with the operation and path involved.
type IOError struct {
	Op   string // "open", "read", "write", "copy", "delete"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{e.Err, ErrIO}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsIO returns true if the error came from the filesystem.
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsNotFound returns true if the error refers to a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownExpense) || errors.Is(err, ErrIndexOutOfRange)
}
