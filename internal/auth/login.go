// ABOUTME: Name and PIN sign-in plus user creation
// ABOUTME: Unknown names and wrong PINs are indistinguishable to the caller

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/opsboard/internal/store"
)

// Login and user-creation errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNameRequired       = errors.New("name is required")
	ErrPINTooShort        = fmt.Errorf("PIN must be at least %d characters", MinPINLength)
	ErrInvalidRole        = errors.New("role must be admin or staff")
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *store.User
}

// Authenticator signs users in and manages accounts.
type Authenticator struct {
	users    store.UserStore
	sessions *Sessions
	logger   *slog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users store.UserStore, sessions *Sessions, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		users:    users,
		sessions: sessions,
		logger:   logger.With("component", "auth"),
	}
}

// Login verifies name and PIN and issues a session token.
func (a *Authenticator) Login(ctx context.Context, name, pin string) (*LoginResult, error) {
	name = strings.TrimSpace(name)
	if name == "" || pin == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := a.users.GetUserByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = ComparePIN(dummyHash, pin)
			a.logger.Info("login failed", "name", name, "reason", "unknown user")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !ComparePIN(user.PINHash, pin) {
		a.logger.Info("login failed", "name", name, "reason", "wrong PIN")
		return nil, ErrInvalidCredentials
	}

	if err := a.users.TouchLastLogin(ctx, user.ID); err != nil {
		// Not worth failing the login over.
		a.logger.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}

	token, expiresAt, err := a.sessions.Issue(user)
	if err != nil {
		return nil, err
	}

	a.logger.Info("login successful", "user_id", user.ID, "name", user.Name)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// CreateUser validates and stores a new user. role defaults to staff.
func (a *Authenticator) CreateUser(ctx context.Context, name, pin string, role store.Role) (*store.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if len(pin) < MinPINLength {
		return nil, ErrPINTooShort
	}
	if role == "" {
		role = store.RoleStaff
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	hash, err := HashPIN(pin)
	if err != nil {
		return nil, err
	}

	u := &store.User{Name: name, PINHash: hash, Role: role}
	if err := a.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	a.logger.Info("user created", "user_id", u.ID, "name", u.Name, "role", u.Role)
	return u, nil
}

// ListUsers returns every user.
func (a *Authenticator) ListUsers(ctx context.Context) ([]*store.User, error) {
	return a.users.ListUsers(ctx)
}

// IsInputError reports whether err came from invalid user-creation input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrNameRequired) || errors.Is(err, ErrPINTooShort) || errors.Is(err, ErrInvalidRole)
}
