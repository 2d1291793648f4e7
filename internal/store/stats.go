// ABOUTME: Active-count aggregation for the board header
// ABOUTME: One query with four scalar subselects

package store

import (
	"context"
	"fmt"
)

// CountActive returns the number of active items in each board section.
func (s *SQLiteStore) CountActive(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM stock_items WHERE is_active = 1 AND category = 'out'),
			(SELECT COUNT(*) FROM stock_items WHERE is_active = 1 AND category = 'low'),
			(SELECT COUNT(*) FROM maintenance WHERE is_active = 1),
			(SELECT COUNT(*) FROM notes WHERE is_active = 1)`,
	).Scan(&st.Out, &st.Low, &st.Maintenance, &st.Notes)
	if err != nil {
		return Stats{}, fmt.Errorf("counting active items: %w", err)
	}
	return st, nil
}
