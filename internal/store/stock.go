// ABOUTME: Stock item persistence for out-of-stock and running-low entries
// ABOUTME: Resolution soft-deletes by clearing is_active and stamping resolved_at once

package store

import (
	"context"
	"database/sql"
	"fmt"
)

const stockColumns = `id, category, item, detail, severity, created_by, created_at, resolved_at, is_active`

// CreateStockItem inserts an active stock item and sets its ID and CreatedAt.
func (s *SQLiteStore) CreateStockItem(ctx context.Context, item *StockItem) error {
	if item.Severity == "" {
		item.Severity = SeverityLow
	}
	now := s.stamp()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_items (category, item, detail, severity, created_by, created_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`,
		string(item.Category), item.Item, item.Detail, string(item.Severity), item.CreatedBy, formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("inserting stock item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading stock item id: %w", err)
	}
	item.ID = id
	item.CreatedAt = now
	item.ResolvedAt = nil
	item.IsActive = true
	return nil
}

// ResolveStockItem marks an active stock item resolved.
// Resolving a missing or already-resolved item reports changed=false without error.
func (s *SQLiteStore) ResolveStockItem(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stock_items SET is_active = 0, resolved_at = ? WHERE id = ? AND is_active = 1`,
		s.timestamp(), id,
	)
	if err != nil {
		return false, fmt.Errorf("resolving stock item: %w", err)
	}
	return rowsChanged(res)
}

// ListStockItems returns items of one category, newest first.
// An empty category returns both.
func (s *SQLiteStore) ListStockItems(ctx context.Context, category StockCategory, activeOnly bool) ([]*StockItem, error) {
	query := `SELECT ` + stockColumns + ` FROM stock_items
		WHERE (? = '' OR category = ?) AND (? = 0 OR is_active = 1)
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, string(category), string(category), boolToInt(activeOnly))
	if err != nil {
		return nil, fmt.Errorf("querying stock items: %w", err)
	}
	defer rows.Close()

	var items []*StockItem
	for rows.Next() {
		it, err := scanStockItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stock items: %w", err)
	}
	return items, nil
}

func scanStockItem(sc scanner) (*StockItem, error) {
	var it StockItem
	var category, severity, createdAt string
	var createdBy sql.NullInt64
	var resolvedAt sql.NullString

	if err := sc.Scan(&it.ID, &category, &it.Item, &it.Detail, &severity, &createdBy, &createdAt, &resolvedAt, &it.IsActive); err != nil {
		return nil, fmt.Errorf("scanning stock item: %w", err)
	}
	it.Category = StockCategory(category)
	it.Severity = Severity(severity)
	it.CreatedBy = nullInt64(createdBy)

	var err error
	if it.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing stock created_at: %w", err)
	}
	if it.ResolvedAt, err = parseNullTime(resolvedAt); err != nil {
		return nil, fmt.Errorf("parsing stock resolved_at: %w", err)
	}
	return &it, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
