// ABOUTME: Handlers for login, token verification and user administration
// ABOUTME: Failed logins share one message whether the name or the PIN was wrong

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/opsboard/internal/auth"
	"github.com/2389/opsboard/internal/store"
)

const msgNamePINRequired = "Name and PIN are required"

type loginRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	PIN  string `json:"pin" validate:"required,max=72"`
}

type createUserRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	PIN  string `json:"pin" validate:"required,max=72"`
	Role string `json:"role" validate:"omitempty,oneof=admin staff"`
}

type userSummary struct {
	ID   int64      `json:"id"`
	Name string     `json:"name"`
	Role store.Role `json:"role"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      userSummary `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if isUnusableBody(err) {
			sendJSONError(w, http.StatusBadRequest, msgNamePINRequired)
			return
		}
		a.writeError(w, r, err, "Login failed")
		return
	}

	res, err := a.auth.Login(r.Context(), req.Name, req.PIN)
	if err != nil {
		a.writeError(w, r, err, "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      userSummary{ID: res.User.ID, Name: res.User.Name, Role: res.User.Role},
	})
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	s := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"user":  userSummary{ID: s.UserID, Name: s.Name, Role: s.Role},
	})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err, "Failed to create user")
		return
	}

	u, err := a.auth.CreateUser(r.Context(), req.Name, req.PIN, store.Role(req.Role))
	if err != nil {
		a.writeError(w, r, err, "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "userId": u.ID})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.auth.ListUsers(r.Context())
	if err != nil {
		a.writeError(w, r, err, "Failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(users))
}

// userInputMessage describes a rejected user-creation input.
func userInputMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrPINTooShort):
		return fmt.Sprintf("PIN must be at least %d characters", auth.MinPINLength)
	case errors.Is(err, auth.ErrInvalidRole):
		return "Role must be admin or staff"
	default:
		return msgNamePINRequired
	}
}
