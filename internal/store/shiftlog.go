// ABOUTME: Shift handover log persistence
// ABOUTME: Entries are hard-deleted and listed newest first with the author's name

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DefaultShiftLogLimit is used when a caller asks for a non-positive number of entries.
const DefaultShiftLogLimit = 20

// CreateShiftEntry inserts a handover entry and sets its ID and CreatedAt.
func (s *SQLiteStore) CreateShiftEntry(ctx context.Context, e *ShiftEntry) error {
	now := s.stamp()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO shift_log (shift_type, focus, eta, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ShiftType, e.Focus, e.ETA, e.Notes, e.CreatedBy, formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting shift entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading shift entry id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now
	return nil
}

// DeleteShiftEntry permanently removes an entry. A missing id reports changed=false.
func (s *SQLiteStore) DeleteShiftEntry(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM shift_log WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting shift entry: %w", err)
	}
	return rowsChanged(res)
}

// ListShiftEntries returns up to limit entries, newest first.
func (s *SQLiteStore) ListShiftEntries(ctx context.Context, limit int) ([]*ShiftEntry, error) {
	if limit <= 0 {
		limit = DefaultShiftLogLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.shift_type, s.focus, s.eta, s.notes, s.created_by, COALESCE(u.name, ''), s.created_at
		FROM shift_log s
		LEFT JOIN users u ON u.id = s.created_by
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying shift log: %w", err)
	}
	defer rows.Close()

	var entries []*ShiftEntry
	for rows.Next() {
		var e ShiftEntry
		var createdAt string
		var createdBy sql.NullInt64

		if err := rows.Scan(&e.ID, &e.ShiftType, &e.Focus, &e.ETA, &e.Notes, &createdBy, &e.CreatedByName, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning shift entry: %w", err)
		}
		e.CreatedBy = nullInt64(createdBy)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing shift created_at: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shift log: %w", err)
	}
	return entries, nil
}
