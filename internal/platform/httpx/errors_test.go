package httpx

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iris-crm/iris/internal/crm"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{crm.ErrNotFound, http.StatusNotFound},
		{crm.ErrValidation, http.StatusBadRequest},
		{crm.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{crm.ErrInvalidState, http.StatusUnprocessableEntity},
		{crm.ErrPrecondition, http.StatusPreconditionFailed},
		{crm.ErrConflict, http.StatusConflict},
		{crm.ErrRetryable, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, fmt.Errorf("op failed: %w", tc.err))
		require.Equal(t, tc.status, rec.Code, "error %v", tc.err)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestRespondErrorKeepsWrappedDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("%w: quote 7 must be accepted", crm.ErrInvalidState))
	require.Contains(t, rec.Body.String(), "quote 7 must be accepted")
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("pq: column does not exist"))
	require.NotContains(t, rec.Body.String(), "column")
}
