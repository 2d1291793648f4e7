// ABOUTME: Session context for tracking the signed-in user through request handlers
// ABOUTME: Provides WithSession/FromContext for propagating identity via context

package auth

import (
	"context"
	"time"

	"github.com/2389/opsboard/internal/store"
)

// Session is the identity carried by a validated token.
type Session struct {
	UserID    int64
	Name      string
	Role      store.Role
	ExpiresAt time.Time
}

// IsAdmin reports whether the session belongs to an admin.
func (s *Session) IsAdmin() bool {
	return s.Role == store.RoleAdmin
}

type sessionContextKey struct{}

// WithSession returns a new context with the session attached.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext retrieves the session from the context, returning nil if not present.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionContextKey{}).(*Session)
	return s
}

// ActorID returns the user id of the session in ctx, or nil for anonymous callers.
func ActorID(ctx context.Context) *int64 {
	s := FromContext(ctx)
	if s == nil {
		return nil
	}
	id := s.UserID
	return &id
}
