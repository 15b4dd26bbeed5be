// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
)

// Error codes carried in ErrorResponse.Error.
const (
	ErrNotFound      = "not_found"
	ErrBadRequest    = "bad_request"
	ErrInternalError = "internal_error"
	ErrValidation    = "validation_error"
	ErrUnauthorized  = "unauthorized"
	ErrForbidden     = "forbidden"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteError writes an error envelope with status.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteErrorWithDetails(w, status, errCode, message, nil)
}

// WriteErrorWithDetails writes an error envelope carrying details, e.g. the
// parse error behind a rejected field.
func WriteErrorWithDetails(w http.ResponseWriter, status int, errCode, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	body := ErrorResponse{Error: errCode, Message: message, Details: details}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing %d response: %v", status, err)
	}
}

// ErrorRecovery turns a handler panic into a 500 envelope. If the response
// has already started, the panic is only logged. http.ErrAbortHandler is
// re-raised for the server to handle.
func ErrorRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			log.Printf("Panic in %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
			if responseStarted(w) {
				return
			}
			WriteError(w, http.StatusInternalServerError, ErrInternalError, "An unexpected error occurred")
		}()
		next.ServeHTTP(w, r)
	})
}

func responseStarted(w http.ResponseWriter) bool {
	rw, ok := w.(*responseWriter)
	return ok && rw.started
}
