package middleware

import (
	"context"
	"net/http"
	"strings"
)

// UserIDHeader carries the id of the signed-in user, set by the session
// proxy in front of the server.
const UserIDHeader = "X-User-ID"

type userIDKey struct{}

// Identity is middleware that stores the caller's user id in the request
// context. Requests without the header proceed anonymously.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID != "" {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the caller's user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}

// RequireUser returns the caller's user id. For anonymous requests it writes
// a 401 response and returns false.
func RequireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := UserID(r.Context())
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "Sign in required")
		return "", false
	}
	return userID, true
}
