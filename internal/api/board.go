// ABOUTME: Handlers for board reads and mutations
// ABOUTME: Writes require a session; the acting user is taken from it for the audit trail

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/opsboard/internal/auth"
	"github.com/2389/opsboard/internal/board"
)

type stockRequest struct {
	Category string `json:"category" validate:"max=16"`
	Item     string `json:"item" validate:"max=200"`
	Detail   string `json:"detail" validate:"max=1000"`
	Severity string `json:"severity" validate:"max=16"`
}

type maintenanceRequest struct {
	Item     string `json:"item" validate:"max=200"`
	Detail   string `json:"detail" validate:"max=1000"`
	Severity string `json:"severity" validate:"max=16"`
	Priority int    `json:"priority"`
}

type noteRequest struct {
	Text      string     `json:"text" validate:"max=2000"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type shiftRequest struct {
	ShiftType string `json:"shiftType" validate:"max=50"`
	Focus     string `json:"focus" validate:"max=500"`
	ETA       string `json:"eta" validate:"max=100"`
	Notes     string `json:"notes" validate:"max=2000"`
}

type settingRequest struct {
	Value *string `json:"value" validate:"required"`
}

type createdResponse struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id"`
}

func (a *API) handleBoard(w http.ResponseWriter, r *http.Request) {
	snap, err := a.board.Snapshot(r.Context())
	if err != nil {
		a.writeError(w, r, err, "Failed to get board data")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.board.Stats(r.Context())
	if err != nil {
		a.writeError(w, r, err, "Failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleExport returns the plain-text shift brief as a download.
func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := a.board.Snapshot(r.Context())
	if err != nil {
		a.writeError(w, r, err, "Failed to export")
		return
	}
	now := a.now()
	brief := board.RenderBrief(snap, now, a.location)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", board.BriefFilename(now, a.location)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(brief))
}

func (a *API) handleListStock(w http.ResponseWriter, r *http.Request) {
	items, err := a.board.ListStock(r.Context(), chi.URLParam(r, "category"), !includeResolved(r))
	if err != nil {
		a.writeError(w, r, err, "Failed to get stock items")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(items))
}

func (a *API) handleAddStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err, "Failed to add stock item")
		return
	}
	id, err := a.board.AddStock(r.Context(), board.StockInput{
		Category: req.Category,
		Item:     req.Item,
		Detail:   req.Detail,
		Severity: req.Severity,
	}, auth.ActorID(r.Context()))
	if err != nil {
		a.writeError(w, r, err, "Failed to add stock item")
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Success: true, ID: id})
}

func (a *API) handleResolveStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = a.board.ResolveStock(r.Context(), id, auth.ActorID(r.Context()))
	}
	if err != nil {
		a.writeError(w, r, err, "Failed to resolve item")
		return
	}
	writeSuccess(w)
}

func (a *API) handleListMaintenance(w http.ResponseWriter, r *http.Request) {
	tickets, err := a.board.ListMaintenance(r.Context(), !includeResolved(r))
	if err != nil {
		a.writeError(w, r, err, "Failed to get maintenance")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(tickets))
}

func (a *API) handleAddMaintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err, "Failed to add maintenance")
		return
	}
	id, err := a.board.AddMaintenance(r.Context(), board.MaintenanceInput{
		Item:     req.Item,
		Detail:   req.Detail,
		Severity: req.Severity,
		Priority: req.Priority,
	}, auth.ActorID(r.Context()))
	if err != nil {
		a.writeError(w, r, err, "Failed to add maintenance")
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Success: true, ID: id})
}

func (a *API) handleResolveMaintenance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = a.board.ResolveMaintenance(r.Context(), id, auth.ActorID(r.Context()))
	}
	if err != nil {
		a.writeError(w, r, err, "Failed to resolve maintenance")
		return
	}
	writeSuccess(w)
}

func (a *API) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := a.board.ListNotes(r.Context(), !includeResolved(r))
	if err != nil {
		a.writeError(w, r, err, "Failed to get notes")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(notes))
}

func (a *API) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err, "Failed to add note")
		return
	}
	id, err := a.board.AddNote(r.Context(), board.NoteInput{
		Text:      req.Text,
		ExpiresAt: req.ExpiresAt,
	}, auth.ActorID(r.Context()))
	if err != nil {
		a.writeError(w, r, err, "Failed to add note")
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Success: true, ID: id})
}

func (a *API) handleResolveNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = a.board.ResolveNote(r.Context(), id, auth.ActorID(r.Context()))
	}
	if err != nil {
		a.writeError(w, r, err, "Failed to resolve note")
		return
	}
	writeSuccess(w)
}

func (a *API) handleListShiftLog(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		a.writeError(w, r, err, "Failed to get shift log")
		return
	}
	entries, err := a.board.ListShiftLog(r.Context(), limit)
	if err != nil {
		a.writeError(w, r, err, "Failed to get shift log")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(entries))
}

func (a *API) handleAddShiftEntry(w http.ResponseWriter, r *http.Request) {
	var req shiftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err, "Failed to add shift entry")
		return
	}
	id, err := a.board.AddShiftEntry(r.Context(), board.ShiftInput{
		ShiftType: req.ShiftType,
		Focus:     req.Focus,
		ETA:       req.ETA,
		Notes:     req.Notes,
	}, auth.ActorID(r.Context()))
	if err != nil {
		a.writeError(w, r, err, "Failed to add shift entry")
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Success: true, ID: id})
}

func (a *API) handleDeleteShiftEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err == nil {
		err = a.board.DeleteShiftEntry(r.Context(), id, auth.ActorID(r.Context()))
	}
	if err != nil {
		a.writeError(w, r, err, "Failed to delete shift entry")
		return
	}
	writeSuccess(w)
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.board.Settings(r.Context())
	if err != nil {
		a.writeError(w, r, err, "Failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var req settingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeError(w, r, err, "Failed to update setting")
		return
	}
	key, err := settingKey(r)
	if err != nil {
		a.writeError(w, r, err, "Failed to update setting")
		return
	}
	if err := a.board.SetSetting(r.Context(), key, *req.Value, auth.ActorID(r.Context())); err != nil {
		a.writeError(w, r, err, "Failed to update setting")
		return
	}
	writeSuccess(w)
}

// settingKey returns the decoded {key} parameter. chi routes on RawPath when
// the request carries escaped reserved characters, leaving them encoded.
func settingKey(r *http.Request) (string, error) {
	key := chi.URLParam(r, "key")
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(key)
		if err != nil {
			return "", &requestError{msg: "Invalid key"}
		}
		key = decoded
	}
	return strings.TrimSpace(key), nil
}

func (a *API) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		a.writeError(w, r, err, "Failed to get activity log")
		return
	}
	entries, err := a.board.Activity(r.Context(), limit)
	if err != nil {
		a.writeError(w, r, err, "Failed to get activity log")
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(entries))
}

// emptyIfNil keeps empty lists encoding as [] rather than null.
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
