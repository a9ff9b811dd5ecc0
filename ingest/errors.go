/*
errors.go - Error types for record ingestion

PURPOSE:
  Ingestion is the only place where loose input can be rejected. The
  engine itself never errors; everything that cannot be normalized into a
  strict shape is reported here with enough context to fix the source row.

ERROR CATEGORIES:
  1. Field errors - a required field is missing or a value cannot be read
  2. Record errors - positional wrapper used by batch parsing
  3. Decode errors - the payload is not a JSON array of objects

USAGE:
    if errors.Is(err, ingest.ErrMissingField) { ... }

    var fe *ingest.FieldError
    if errors.As(err, &fe) { log.Warn().Str("field", fe.Field).Msg("skipped") }
*/
package ingest

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingField is returned when none of a field's aliases is present.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidField is returned when a present value cannot be interpreted.
	ErrInvalidField = errors.New("invalid field value")

	// ErrNegativeQuantity is returned for quantities below zero.
	ErrNegativeQuantity = errors.New("negative quantity")

	// ErrDecode is returned when a payload is not a JSON array of objects.
	ErrDecode = errors.New("malformed records payload")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError names the record kind and field that failed.
type FieldError struct {
	Kind  string // "activity", "kpi", "project"
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %s=%v: %v", e.Kind, e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// RecordError locates a failed record inside a batch.
type RecordError struct {
	Index int
	ID    string
	Err   error
}

func (e *RecordError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("record %d (%s): %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidField) ||
		errors.Is(err, ErrNegativeQuantity) ||
		errors.Is(err, ErrDecode)
}

func missing(kind, field string) error {
	return &FieldError{Kind: kind, Field: field, Err: ErrMissingField}
}

func invalid(kind, field string, value any, err error) error {
	if err == nil {
		err = ErrInvalidField
	} else if !errors.Is(err, ErrInvalidField) && !errors.Is(err, ErrNegativeQuantity) {
		err = fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return &FieldError{Kind: kind, Field: field, Value: value, Err: err}
}
