package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteErrorWithDetails(rec, http.StatusBadRequest, ErrValidation, "Invalid rrule", "FREQ=SOMETIMES")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, ErrorResponse{Error: ErrValidation, Message: "Invalid rrule", Details: "FREQ=SOMETIMES"}, body)
}

func TestWriteError_OmitsDetails(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, http.StatusNotFound, ErrNotFound, "Task not found")

	assert.JSONEq(t, `{"error":"not_found","message":"Task not found"}`, rec.Body.String())
}

func TestErrorRecovery_WritesEnvelope(t *testing.T) {
	handler := Logging(ErrorRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil roster")
	})))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/timeline", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrInternalError)
}

func TestErrorRecovery_KeepsStartedResponse(t *testing.T) {
	handler := Logging(ErrorRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("BEGIN:VCALENDAR\r\n"))
		panic("export failed")
	})))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/timeline.ics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BEGIN:VCALENDAR\r\n", rec.Body.String())
}

func TestErrorRecovery_ReraisesAbort(t *testing.T) {
	handler := ErrorRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
