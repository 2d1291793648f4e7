// ABOUTME: User persistence for board sign-in
// ABOUTME: Names are unique case-insensitively; PINs are stored only as bcrypt hashes

package store

import (
	"context"
	"database/sql"
	"fmt"
)

const userColumns = `id, name, pin_hash, role, created_at, last_login`

// CreateUser inserts a user and sets u.ID and u.CreatedAt.
// Returns ErrUserExists if the name is already taken (ignoring case).
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	if u.Role == "" {
		u.Role = RoleStaff
	}
	now := s.stamp()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, pin_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		u.Name, u.PINHash, string(u.Role), formatTime(now),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUserExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now

	s.logger.Debug("created user", "id", u.ID, "name", u.Name, "role", u.Role)
	return nil
}

// GetUser retrieves a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if notFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetUserByName looks a user up by name, ignoring case.
func (s *SQLiteStore) GetUserByName(ctx context.Context, name string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE name = ? COLLATE NOCASE`, name)
	u, err := scanUser(row)
	if notFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by name: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by name.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// TouchLastLogin stamps the user's last successful login.
func (s *SQLiteStore) TouchLastLogin(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	changed, err := rowsChanged(res)
	if err != nil {
		return err
	}
	if !changed {
		return ErrNotFound
	}
	return nil
}

// CountAdmins returns the number of users with the admin role.
func (s *SQLiteStore) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(RoleAdmin)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return n, nil
}

func scanUser(sc scanner) (*User, error) {
	var u User
	var role, createdAt string
	var lastLogin sql.NullString

	if err := sc.Scan(&u.ID, &u.Name, &u.PINHash, &role, &createdAt, &lastLogin); err != nil {
		return nil, err
	}
	u.Role = Role(role)

	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.LastLogin, err = parseNullTime(lastLogin); err != nil {
		return nil, fmt.Errorf("parsing last_login: %w", err)
	}
	return &u, nil
}
