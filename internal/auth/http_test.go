// ABOUTME: Tests for HTTP session middleware
// ABOUTME: Covers token extraction, validation failures and the admin gate

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/opsboard/internal/store"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Basic abc", ""},
		{"Bearer ", ""},
		{"Bearer abc.def", "abc.def"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractBearerToken(tt.header), "header %q", tt.header)
	}
}

func TestRequireSession(t *testing.T) {
	sessions := newTestSessions(t)
	token, _, err := sessions.Issue(&store.User{ID: 3, Name: "Sam", Role: store.RoleStaff})
	require.NoError(t, err)

	var got *Session
	handler := RequireSession(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"missing header", "", http.StatusUnauthorized, `{"error":"Authentication required"}`},
		{"bad token", "Bearer nope", http.StatusUnauthorized, `{"error":"Invalid or expired token"}`},
		{"valid", "Bearer " + token, http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodPost, "/api/stock", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, int64(3), got.UserID)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	gate := RequireAdmin()(ok)

	run := func(s *Session) int {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/users", nil)
		if s != nil {
			req = req.WithContext(WithSession(req.Context(), s))
		}
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, run(nil))
	assert.Equal(t, http.StatusForbidden, run(&Session{UserID: 2, Role: store.RoleStaff}))
	assert.Equal(t, http.StatusOK, run(&Session{UserID: 1, Role: store.RoleAdmin}))
}

func TestActorID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, ActorID(req.Context()))

	ctx := WithSession(req.Context(), &Session{UserID: 9})
	require.NotNil(t, ActorID(ctx))
	assert.Equal(t, int64(9), *ActorID(ctx))
}
