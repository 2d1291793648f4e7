// ABOUTME: Free-text board note persistence
// ABOUTME: Notes carry an optional expiry that is stored and returned but not enforced

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateNote inserts an active note and sets its ID and CreatedAt.
func (s *SQLiteStore) CreateNote(ctx context.Context, n *Note) error {
	now := s.stamp()

	var expires any
	if n.ExpiresAt != nil {
		expires = formatTime(*n.ExpiresAt)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (text, created_by, created_at, expires_at, is_active) VALUES (?, ?, ?, ?, 1)`,
		n.Text, n.CreatedBy, formatTime(now), expires,
	)
	if err != nil {
		return fmt.Errorf("inserting note: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading note id: %w", err)
	}
	n.ID = id
	n.CreatedAt = now
	n.IsActive = true
	return nil
}

// ResolveNote deactivates a note. Missing or inactive notes report changed=false.
func (s *SQLiteStore) ResolveNote(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notes SET is_active = 0 WHERE id = ? AND is_active = 1`, id)
	if err != nil {
		return false, fmt.Errorf("resolving note: %w", err)
	}
	return rowsChanged(res)
}

// ListNotes returns notes newest first.
func (s *SQLiteStore) ListNotes(ctx context.Context, activeOnly bool) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, created_by, created_at, expires_at, is_active FROM notes
		WHERE (? = 0 OR is_active = 1)
		ORDER BY created_at DESC, id DESC`, boolToInt(activeOnly))
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		var n Note
		var createdAt string
		var createdBy sql.NullInt64
		var expiresAt sql.NullString

		if err := rows.Scan(&n.ID, &n.Text, &createdBy, &createdAt, &expiresAt, &n.IsActive); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		n.CreatedBy = nullInt64(createdBy)
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing note created_at: %w", err)
		}
		if n.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
			return nil, fmt.Errorf("parsing note expires_at: %w", err)
		}
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}
	return notes, nil
}
