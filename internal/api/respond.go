// ABOUTME: JSON request decoding, validation and error responses
// ABOUTME: Maps domain and storage errors to HTTP status codes in one place

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/2389/opsboard/internal/auth"
	"github.com/2389/opsboard/internal/board"
	"github.com/2389/opsboard/internal/store"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// requestError is a malformed or invalid request body.
type requestError struct {
	msg string
	// unusable is set when the body was not JSON or lacked a required field,
	// as opposed to carrying a value that failed a constraint.
	unusable bool
}

func (e *requestError) Error() string { return e.msg }

// decodeJSON reads a JSON body into dst and validates its struct tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &requestError{msg: "Request body too large"}
		}
		return &requestError{msg: "Invalid JSON body", unusable: true}
	}
	if err := validate.Struct(dst); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return &requestError{msg: "Invalid request"}
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return &requestError{msg: fe.Field() + " is required", unusable: true}
	case "max":
		return &requestError{msg: fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())}
	case "min":
		return &requestError{msg: fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())}
	case "oneof":
		return &requestError{msg: fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())}
	}
	return &requestError{msg: fe.Field() + " is invalid"}
}

// isUnusableBody reports whether err is a body that was not JSON or missed a required field.
func isUnusableBody(err error) bool {
	var re *requestError
	return errors.As(err, &re) && re.unusable
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeError maps err to a response. Unrecognised errors are logged and
// answered with 500 and the generic fallback message.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var re *requestError
	var ve *board.ValidationError
	switch {
	case errors.As(err, &re):
		sendJSONError(w, http.StatusBadRequest, re.msg)
	case errors.As(err, &ve):
		sendJSONError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, auth.ErrInvalidCredentials):
		sendJSONError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, store.ErrUserExists):
		sendJSONError(w, http.StatusConflict, "User already exists")
	case auth.IsInputError(err):
		sendJSONError(w, http.StatusBadRequest, userInputMessage(err))
	default:
		a.logger.Error(strings.ToLower(fallback),
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
		sendJSONError(w, http.StatusInternalServerError, fallback)
	}
}

// pathID parses the {id} URL parameter as a positive integer.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &requestError{msg: "Invalid id"}
	}
	return id, nil
}

// queryLimit parses ?limit=. Absent means zero, which stores treat as their default.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &requestError{msg: "Invalid limit"}
	}
	return n, nil
}

// includeResolved reports whether ?all= asks for resolved rows too.
func includeResolved(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("all"))
	return err == nil && v
}

func slogLevelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
