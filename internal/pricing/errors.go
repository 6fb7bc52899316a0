package pricing

import (
	"fmt"

	"github.com/odyssey-erp/pricedesk/internal/shared"
)

// ErrorKind classifies engine failures.
type ErrorKind string

const (
	// KindInvalidBasePrice marks a base price without a usable tax exclusive amount.
	KindInvalidBasePrice ErrorKind = "InvalidBasePrice"
	// KindUnsupportedChangeType marks an unknown change type.
	KindUnsupportedChangeType ErrorKind = "UnsupportedChangeType"
)

// DomainError is returned by the engine instead of NaN or a silent default.
type DomainError struct {
	Kind   ErrorKind
	Detail string
}

func (e *DomainError) Error() string {
	if e.Detail == "" {
		return "pricing: " + string(e.Kind)
	}
	return fmt.Sprintf("pricing: %s: %s", e.Kind, e.Detail)
}

// Is matches any DomainError of the same kind.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Kind == e.Kind
}

var (
	// ErrInvalidBasePrice matches DomainError values of KindInvalidBasePrice.
	ErrInvalidBasePrice = &DomainError{Kind: KindInvalidBasePrice}
	// ErrUnsupportedChangeType matches DomainError values of KindUnsupportedChangeType.
	ErrUnsupportedChangeType = &DomainError{Kind: KindUnsupportedChangeType}
)

func invalidBasePrice(detail string) error {
	return &DomainError{Kind: KindInvalidBasePrice, Detail: detail}
}

func unsupportedChangeType(raw string) error {
	return &DomainError{Kind: KindUnsupportedChangeType, Detail: fmt.Sprintf("%q", raw)}
}

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = shared.ErrInvalidValue

// ValidationError rejects a value at input capture, before it reaches the engine.
type ValidationError = shared.ValidationError
