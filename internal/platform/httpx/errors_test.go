package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForTaxonomy(t *testing.T) {
	cases := map[error]int{
		ErrInvalidRequest:  http.StatusBadRequest,
		ErrUnauthenticated: http.StatusUnauthorized,
		ErrForbidden:       http.StatusForbidden,
		ErrNotFound:        http.StatusNotFound,
		ErrConflict:        http.StatusConflict,
		ErrUpstream:        http.StatusInternalServerError,
		ErrConfiguration:   http.StatusInternalServerError,
		ErrStorage:         http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(fmt.Errorf("wrapped: %w", err)), err.Error())
	}
}

func TestRespondErrorUsesTypedMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, NewError(ErrForbidden, "Access denied: Insufficient permissions"))

	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Access denied: Insufficient permissions", body.Error)
}

func TestRespondErrorHidesStorageDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("%w: connection refused", ErrStorage))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, rr.Body.String())
}

func TestRespondErrorPassesUpstreamMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("completion provider returned status 503: %w", ErrUpstream))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "503")
	assert.True(t, errors.Is(fmt.Errorf("x: %w", NewError(ErrUpstream, "boom")), ErrUpstream))
}
