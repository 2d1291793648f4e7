// ABOUTME: HTTP middleware for session authentication on API endpoints
// ABOUTME: Extracts the bearer token from the Authorization header and adds the session to context

package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Error messages returned to clients.
const (
	msgAuthRequired = "Authentication required"
	msgInvalidToken = "Invalid or expired token"
	msgAdminOnly    = "Admin access required"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns an empty string if the header is missing or malformed.
func extractBearerToken(authHeader string) string {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RequireSession creates an HTTP middleware that rejects requests without a valid session token.
func RequireSession(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, msgAuthRequired)
				return
			}

			session, err := validator.Validate(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, msgInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// RequireAdmin creates an HTTP middleware that requires the admin role.
// Must be used after RequireSession.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := FromContext(r.Context())
			if session == nil {
				writeAuthError(w, http.StatusUnauthorized, msgAuthRequired)
				return
			}
			if !session.IsAdmin() {
				writeAuthError(w, http.StatusForbidden, msgAdminOnly)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
