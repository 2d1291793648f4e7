// ABOUTME: Maintenance ticket persistence for equipment issues
// ABOUTME: Active tickets list by priority, most urgent first

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DefaultPriority is assigned to tickets created without an explicit priority.
const DefaultPriority = 2

const maintenanceColumns = `id, item, detail, severity, priority, created_by, created_at, resolved_at, is_active`

// CreateMaintenanceTicket inserts an active ticket and sets its ID and CreatedAt.
func (s *SQLiteStore) CreateMaintenanceTicket(ctx context.Context, t *MaintenanceTicket) error {
	if t.Severity == "" {
		t.Severity = SeverityMaint
	}
	if t.Priority == 0 {
		t.Priority = DefaultPriority
	}
	now := s.stamp()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance (item, detail, severity, priority, created_by, created_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`,
		t.Item, t.Detail, string(t.Severity), t.Priority, t.CreatedBy, formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting maintenance ticket: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading maintenance ticket id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.ResolvedAt = nil
	t.IsActive = true
	return nil
}

// ResolveMaintenanceTicket marks an active ticket resolved. See ResolveStockItem.
func (s *SQLiteStore) ResolveMaintenanceTicket(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE maintenance SET is_active = 0, resolved_at = ? WHERE id = ? AND is_active = 1`,
		s.timestamp(), id,
	)
	if err != nil {
		return false, fmt.Errorf("resolving maintenance ticket: %w", err)
	}
	return rowsChanged(res)
}

// ListMaintenanceTickets returns tickets ordered by priority then newest first.
func (s *SQLiteStore) ListMaintenanceTickets(ctx context.Context, activeOnly bool) ([]*MaintenanceTicket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+maintenanceColumns+` FROM maintenance
		WHERE (? = 0 OR is_active = 1)
		ORDER BY priority ASC, created_at DESC, id DESC`, boolToInt(activeOnly))
	if err != nil {
		return nil, fmt.Errorf("querying maintenance tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*MaintenanceTicket
	for rows.Next() {
		var t MaintenanceTicket
		var severity, createdAt string
		var createdBy sql.NullInt64
		var resolvedAt sql.NullString

		if err := rows.Scan(&t.ID, &t.Item, &t.Detail, &severity, &t.Priority, &createdBy, &createdAt, &resolvedAt, &t.IsActive); err != nil {
			return nil, fmt.Errorf("scanning maintenance ticket: %w", err)
		}
		t.Severity = Severity(severity)
		t.CreatedBy = nullInt64(createdBy)
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing maintenance created_at: %w", err)
		}
		if t.ResolvedAt, err = parseNullTime(resolvedAt); err != nil {
			return nil, fmt.Errorf("parsing maintenance resolved_at: %w", err)
		}
		tickets = append(tickets, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating maintenance tickets: %w", err)
	}
	return tickets, nil
}
