package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/pricedesk/internal/pricing"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

func TestRespondErrorStatus(t *testing.T) {
	_, pricingErr := pricing.Compute(pricing.FixedPrice, pricing.NewMoney(0, 0).ExclTax, pricing.NewMoney(0, 0))
	require.Error(t, pricingErr)

	tests := map[string]struct {
		err  error
		code int
	}{
		"not found":      {fmt.Errorf("item 3: %w", shared.ErrNotFound), http.StatusNotFound},
		"http not found": {ErrNotFound, http.StatusNotFound},
		"conflict":       {errors.Join(ErrConflict, errors.New("dup")), http.StatusConflict},
		"gone":           {ErrGone, http.StatusGone},
		"bad request":    {fmt.Errorf("%w: bad json", ErrValidation), http.StatusBadRequest},
		"invalid id":     {fmt.Errorf("%w: x", shared.ErrInvalidID), http.StatusBadRequest},
		"invalid value":  {&shared.ValidationError{Field: "quantity", Reason: "must not be negative"}, http.StatusUnprocessableEntity},
		"pricing":        {pricingErr, http.StatusUnprocessableEntity},
		"unexpected":     {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)
			assert.Equal(t, tc.code, rr.Code)
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: password authentication failed"))
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Value any `json:"value"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"value":12.50}`))
	require.NoError(t, DecodeJSON(req, &body))
	assert.Equal(t, json.Number("12.50"), body.Value)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
	assert.ErrorIs(t, DecodeJSON(req, &body), ErrValidation)
}
