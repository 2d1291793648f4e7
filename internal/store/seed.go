// ABOUTME: First-run seeding of the admin account, default settings and demo board rows
// ABOUTME: Every step is conditional so seeding is safe to run on each start

package store

import (
	"context"
	"fmt"
	"time"
)

// DefaultSettings are written once; later edits are never overwritten by seeding.
var DefaultSettings = []Setting{
	{Key: "restaurant_name", Value: "Basil & Grape"},
	{Key: "address", Value: "46-48 George Street, Croydon, CR0 1PB"},
	{Key: "phone", Value: "020 8680 1801"},
	{Key: "floor_lead", Value: "Update name"},
	{Key: "opening_hours", Value: "Tue-Thu 12-22:00 | Fri-Sat 12-23:00 | Sun 12-21:00"},
	{Key: "website", Value: "https://basilandgrape.com"},
}

// SeedOptions controls first-run seeding.
type SeedOptions struct {
	AdminName    string
	AdminPINHash string // bcrypt hash; the store never sees the plain PIN
	SkipDemo     bool
}

// SeedResult reports what Seed actually wrote.
type SeedResult struct {
	AdminCreated bool
	DemoCreated  bool
}

// Seed ensures an admin exists, fills in missing default settings, and
// adds demo rows when the stock table has never been used.
func (s *SQLiteStore) Seed(ctx context.Context, opts SeedOptions) (SeedResult, error) {
	var result SeedResult

	admins, err := s.CountAdmins(ctx)
	if err != nil {
		return result, err
	}
	if admins == 0 {
		if opts.AdminName == "" || opts.AdminPINHash == "" {
			return result, fmt.Errorf("seeding admin: name and PIN hash are required")
		}
		admin := &User{Name: opts.AdminName, PINHash: opts.AdminPINHash, Role: RoleAdmin}
		if err := s.CreateUser(ctx, admin); err != nil {
			return result, fmt.Errorf("seeding admin: %w", err)
		}
		result.AdminCreated = true
		s.logger.Info("default admin created", "name", admin.Name)
	}

	for _, st := range DefaultSettings {
		if err := s.insertDefaultSetting(ctx, st.Key, st.Value); err != nil {
			return result, err
		}
	}

	if opts.SkipDemo {
		return result, nil
	}

	var stockRows int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_items`).Scan(&stockRows); err != nil {
		return result, fmt.Errorf("counting stock items: %w", err)
	}
	if stockRows > 0 {
		return result, nil
	}

	if err := s.seedDemo(ctx); err != nil {
		return result, err
	}
	result.DemoCreated = true
	s.logger.Info("demo board data added")
	return result, nil
}

func (s *SQLiteStore) seedDemo(ctx context.Context) error {
	now := s.stamp()
	ago := func(d time.Duration) string { return formatTime(now.Add(-d)) }

	stmts := []struct {
		query string
		args  []any
	}{
		{
			`INSERT INTO stock_items (category, item, detail, severity, created_at, is_active) VALUES (?, ?, ?, ?, ?, 1)`,
			[]any{string(CategoryOut), "Buffalo Mozzarella", "Supplier delivering tomorrow AM", string(SeverityNone), ago(time.Hour)},
		},
		{
			`INSERT INTO stock_items (category, item, detail, severity, created_at, is_active) VALUES (?, ?, ?, ?, ?, 1)`,
			[]any{string(CategoryLow), "House Sourdough", "~15 portions left, check proofing", string(SeverityLow), ago(30 * time.Minute)},
		},
		{
			`INSERT INTO maintenance (item, detail, severity, priority, created_at, is_active) VALUES (?, ?, ?, ?, ?, 1)`,
			[]any{"Pizza Oven Left Deck", "Running slightly cool, rotate pies right", string(SeverityMaint), DefaultPriority, ago(2 * time.Hour)},
		},
		{
			`INSERT INTO notes (text, created_at, is_active) VALUES (?, ?, 1)`,
			[]any{"Prep extra basil garnish for spritz service", ago(10 * time.Minute)},
		},
	}

	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st.query, st.args...); err != nil {
			return fmt.Errorf("inserting demo row: %w", err)
		}
	}
	return nil
}
