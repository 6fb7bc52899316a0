package shared

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidID indicates a malformed identifier.
	ErrInvalidID = errors.New("invalid id")
	// ErrInvalidValue is wrapped by every ValidationError.
	ErrInvalidValue = errors.New("validation failed")
)

// ValidationError rejects one field value at input capture.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidValue
}

// ParseID parses a positive int64 identifier.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}
