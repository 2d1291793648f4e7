// ABOUTME: Board Service is the single entry point for every board mutation and read
// ABOUTME: Each write is followed by a best-effort audit row and exactly one invalidation

package board

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/opsboard/internal/metrics"
	"github.com/2389/opsboard/internal/store"
)

// Notifier is told that the board changed. Invalidate must not block.
type Notifier interface {
	Invalidate()
}

type nopNotifier struct{}

func (nopNotifier) Invalidate() {}

// ValidationError reports input rejected before the store was touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records mutations and swallowed audit failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service implements the board operations on top of a BoardStore.
type Service struct {
	store    store.BoardStore
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Service. A nil notifier disables invalidation.
func New(st store.BoardStore, notifier Notifier, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	s := &Service{
		store:    st,
		notifier: notifier,
		logger:   logger.With("component", "board"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StockInput is the caller-supplied part of a new stock item.
type StockInput struct {
	Category string
	Item     string
	Detail   string
	Severity string
}

// MaintenanceInput is the caller-supplied part of a new maintenance ticket.
type MaintenanceInput struct {
	Item     string
	Detail   string
	Severity string
	Priority int // zero means default
}

// NoteInput is the caller-supplied part of a new note.
type NoteInput struct {
	Text      string
	ExpiresAt *time.Time
}

// ShiftInput is the caller-supplied part of a shift handover.
type ShiftInput struct {
	ShiftType string
	Focus     string
	ETA       string
	Notes     string
}

// change describes a committed write for the audit trail.
type change struct {
	actor   *int64
	entity  string
	action  string
	id      int64
	details string
	audit   bool // false for writes that are not audited, or no-ops
}

// committed runs the post-write steps. Audit failures are logged and counted, never returned.
func (s *Service) committed(ctx context.Context, c change) {
	if c.audit {
		entry := &store.ActivityEntry{
			UserID:     c.actor,
			Action:     c.action,
			EntityType: c.entity,
			EntityID:   c.id,
			Details:    c.details,
		}
		if err := s.store.AppendActivity(ctx, entry); err != nil {
			s.metrics.AuditFailed()
			s.logger.Error("activity log write failed",
				"entity", c.entity,
				"entity_id", c.id,
				"action", c.action,
				"error", err)
		}
	}
	s.metrics.Mutation(c.entity, c.action)
	s.notifier.Invalidate()
}

func parseSeverity(raw string, def store.Severity) (store.Severity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	sev := store.Severity(raw)
	if !sev.Valid() {
		return "", invalid("severity", "Severity must be one of none, low, maint")
	}
	return sev, nil
}

// AddStock records an out-of-stock or running-low item.
func (s *Service) AddStock(ctx context.Context, in StockInput, actor *int64) (int64, error) {
	category := store.StockCategory(strings.TrimSpace(in.Category))
	item := strings.TrimSpace(in.Item)
	if category == "" || item == "" {
		return 0, invalid("item", "Category and item required")
	}
	if !category.Valid() {
		return 0, invalid("category", "Invalid category")
	}
	sev, err := parseSeverity(in.Severity, store.SeverityLow)
	if err != nil {
		return 0, err
	}

	it := &store.StockItem{
		Category:  category,
		Item:      item,
		Detail:    strings.TrimSpace(in.Detail),
		Severity:  sev,
		CreatedBy: actor,
	}
	if err := s.store.CreateStockItem(ctx, it); err != nil {
		return 0, err
	}

	s.committed(ctx, change{
		actor: actor, entity: store.EntityStock, action: store.ActionAdd, id: it.ID,
		details: fmt.Sprintf("Added %s: %s", category, item), audit: true,
	})
	return it.ID, nil
}

// ResolveStock marks a stock item resolved. Unknown or already-resolved ids succeed silently.
func (s *Service) ResolveStock(ctx context.Context, id int64, actor *int64) error {
	changed, err := s.store.ResolveStockItem(ctx, id)
	if err != nil {
		return err
	}
	s.committed(ctx, change{
		actor: actor, entity: store.EntityStock, action: store.ActionResolve, id: id,
		details: "Resolved stock item", audit: changed,
	})
	return nil
}

// AddMaintenance records an equipment issue.
func (s *Service) AddMaintenance(ctx context.Context, in MaintenanceInput, actor *int64) (int64, error) {
	item := strings.TrimSpace(in.Item)
	if item == "" {
		return 0, invalid("item", "Item required")
	}
	sev, err := parseSeverity(in.Severity, store.SeverityMaint)
	if err != nil {
		return 0, err
	}
	if in.Priority < 0 {
		return 0, invalid("priority", "Priority must be 1 or greater")
	}

	t := &store.MaintenanceTicket{
		Item:      item,
		Detail:    strings.TrimSpace(in.Detail),
		Severity:  sev,
		Priority:  in.Priority,
		CreatedBy: actor,
	}
	if err := s.store.CreateMaintenanceTicket(ctx, t); err != nil {
		return 0, err
	}

	s.committed(ctx, change{
		actor: actor, entity: store.EntityMaintenance, action: store.ActionAdd, id: t.ID,
		details: "Added maintenance: " + item, audit: true,
	})
	return t.ID, nil
}

// ResolveMaintenance marks a ticket resolved.
func (s *Service) ResolveMaintenance(ctx context.Context, id int64, actor *int64) error {
	changed, err := s.store.ResolveMaintenanceTicket(ctx, id)
	if err != nil {
		return err
	}
	s.committed(ctx, change{
		actor: actor, entity: store.EntityMaintenance, action: store.ActionResolve, id: id,
		details: "Resolved maintenance item", audit: changed,
	})
	return nil
}

// AddNote posts a free-text note. Notes are not audited.
func (s *Service) AddNote(ctx context.Context, in NoteInput, actor *int64) (int64, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return 0, invalid("text", "Text required")
	}

	n := &store.Note{Text: text, CreatedBy: actor, ExpiresAt: in.ExpiresAt}
	if err := s.store.CreateNote(ctx, n); err != nil {
		return 0, err
	}

	s.committed(ctx, change{actor: actor, entity: store.EntityNote, action: store.ActionAdd, id: n.ID})
	return n.ID, nil
}

// ResolveNote hides a note from the board.
func (s *Service) ResolveNote(ctx context.Context, id int64, actor *int64) error {
	if _, err := s.store.ResolveNote(ctx, id); err != nil {
		return err
	}
	s.committed(ctx, change{actor: actor, entity: store.EntityNote, action: store.ActionResolve, id: id})
	return nil
}

// AddShiftEntry appends a shift handover.
func (s *Service) AddShiftEntry(ctx context.Context, in ShiftInput, actor *int64) (int64, error) {
	shiftType := strings.TrimSpace(in.ShiftType)
	focus := strings.TrimSpace(in.Focus)
	if shiftType == "" || focus == "" {
		return 0, invalid("focus", "Shift type and focus required")
	}

	e := &store.ShiftEntry{
		ShiftType: shiftType,
		Focus:     focus,
		ETA:       strings.TrimSpace(in.ETA),
		Notes:     strings.TrimSpace(in.Notes),
		CreatedBy: actor,
	}
	if err := s.store.CreateShiftEntry(ctx, e); err != nil {
		return 0, err
	}

	s.committed(ctx, change{
		actor: actor, entity: store.EntityShift, action: store.ActionAdd, id: e.ID,
		details: "Shift handover: " + shiftType, audit: true,
	})
	return e.ID, nil
}

// DeleteShiftEntry removes a handover permanently.
func (s *Service) DeleteShiftEntry(ctx context.Context, id int64, actor *int64) error {
	changed, err := s.store.DeleteShiftEntry(ctx, id)
	if err != nil {
		return err
	}
	s.committed(ctx, change{
		actor: actor, entity: store.EntityShift, action: store.ActionDelete, id: id,
		details: "Deleted shift entry", audit: changed,
	})
	return nil
}

// SetSetting creates or replaces one setting.
func (s *Service) SetSetting(ctx context.Context, key, value string, actor *int64) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return invalid("key", "Setting key required")
	}
	if err := s.store.SetSetting(ctx, key, value); err != nil {
		return err
	}
	s.committed(ctx, change{
		actor: actor, entity: store.EntitySetting, action: store.ActionUpdate,
		details: "Updated setting: " + key, audit: true,
	})
	return nil
}

// ListStock returns stock items of one category, newest first.
func (s *Service) ListStock(ctx context.Context, category string, activeOnly bool) ([]*store.StockItem, error) {
	c := store.StockCategory(category)
	if !c.Valid() {
		return nil, invalid("category", "Invalid category")
	}
	return s.store.ListStockItems(ctx, c, activeOnly)
}

// ListMaintenance returns maintenance tickets, most urgent first.
func (s *Service) ListMaintenance(ctx context.Context, activeOnly bool) ([]*store.MaintenanceTicket, error) {
	return s.store.ListMaintenanceTickets(ctx, activeOnly)
}

// ListNotes returns notes, newest first.
func (s *Service) ListNotes(ctx context.Context, activeOnly bool) ([]*store.Note, error) {
	return s.store.ListNotes(ctx, activeOnly)
}

// ListShiftLog returns the latest handovers. A non-positive limit means the default.
func (s *Service) ListShiftLog(ctx context.Context, limit int) ([]*store.ShiftEntry, error) {
	return s.store.ListShiftEntries(ctx, limit)
}

// Settings returns all settings as a flat map.
func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	list, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(list))
	for _, st := range list {
		out[st.Key] = st.Value
	}
	return out, nil
}

// Activity returns the audit trail, newest first.
func (s *Service) Activity(ctx context.Context, limit int) ([]*store.ActivityEntry, error) {
	return s.store.ListActivity(ctx, limit)
}

// Stats returns the active counts per section.
func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	return s.store.CountActive(ctx)
}
