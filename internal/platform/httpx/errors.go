// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/pricedesk/internal/pricing"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrGone       = errors.New("gone")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var domainErr *pricing.DomainError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrGone):
		Problem(w, http.StatusGone, "Gone", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, shared.ErrInvalidID):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidValue):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Value", err.Error())
	case errors.As(err, &domainErr):
		Problem(w, http.StatusUnprocessableEntity, "Pricing Error", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
