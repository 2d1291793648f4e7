// ABOUTME: Append-only activity log recording who changed what on the board
// ABOUTME: Reads join the actor's current name; deleted actors show an empty name

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// normalizeActivityLimit applies default (50) and cap (500) to an activity limit.
func normalizeActivityLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}

// AppendActivity appends an entry and sets its ID and CreatedAt.
func (s *SQLiteStore) AppendActivity(ctx context.Context, e *ActivityEntry) error {
	now := s.stamp()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (user_id, action, entity_type, entity_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Action, e.EntityType, e.EntityID, e.Details, formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting activity entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading activity entry id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now

	s.logger.Debug("appended activity",
		"id", e.ID,
		"action", e.Action,
		"target", fmt.Sprintf("%s/%d", e.EntityType, e.EntityID),
	)
	return nil
}

// ListActivity returns the most recent entries, newest first.
func (s *SQLiteStore) ListActivity(ctx context.Context, limit int) ([]*ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, COALESCE(u.name, ''), a.action, a.entity_type, a.entity_id, a.details, a.created_at
		FROM activity_log a
		LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ?`, normalizeActivityLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying activity log: %w", err)
	}
	defer rows.Close()

	var entries []*ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		var userID sql.NullInt64
		var createdAt string

		if err := rows.Scan(&e.ID, &userID, &e.UserName, &e.Action, &e.EntityType, &e.EntityID, &e.Details, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		e.UserID = nullInt64(userID)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing activity created_at: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity log: %w", err)
	}
	return entries, nil
}
