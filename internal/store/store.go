// ABOUTME: Entity types and store interfaces for the kitchen operations board
// ABOUTME: Defines users, stock items, maintenance tickets, notes, shift log, settings and activity

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUserExists is returned when creating a user whose name is already taken
var ErrUserExists = errors.New("user already exists")

// Role is the permission level of a board user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// StockCategory distinguishes out-of-stock items from running-low warnings.
type StockCategory string

const (
	CategoryOut StockCategory = "out"
	CategoryLow StockCategory = "low"
)

// Valid reports whether c is a known stock category.
func (c StockCategory) Valid() bool {
	return c == CategoryOut || c == CategoryLow
}

// Severity is a display label; it plays no part in consistency rules.
type Severity string

const (
	SeverityNone  Severity = "none"
	SeverityLow   Severity = "low"
	SeverityMaint Severity = "maint"
)

// Valid reports whether s is a known severity tag.
func (s Severity) Valid() bool {
	switch s {
	case SeverityNone, SeverityLow, SeverityMaint:
		return true
	}
	return false
}

// Entity types recorded in the activity log.
const (
	EntityStock       = "stock"
	EntityMaintenance = "maintenance"
	EntityNote        = "note"
	EntityShift       = "shift"
	EntitySetting     = "setting"
	EntityUser        = "user"
)

// Activity actions.
const (
	ActionAdd     = "add"
	ActionResolve = "resolve"
	ActionDelete  = "delete"
	ActionUpdate  = "update"
)

// User is a staff member who can sign in to the board.
type User struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	PINHash   string     `json:"-"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login"`
}

// StockItem is an out-of-stock or running-low entry.
type StockItem struct {
	ID         int64         `json:"id"`
	Category   StockCategory `json:"category"`
	Item       string        `json:"item"`
	Detail     string        `json:"detail"`
	Severity   Severity      `json:"severity"`
	CreatedBy  *int64        `json:"created_by"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at"`
	IsActive   bool          `json:"is_active"`
}

// MaintenanceTicket is an equipment issue. Lower priority values are more urgent.
type MaintenanceTicket struct {
	ID         int64      `json:"id"`
	Item       string     `json:"item"`
	Detail     string     `json:"detail"`
	Severity   Severity   `json:"severity"`
	Priority   int        `json:"priority"`
	CreatedBy  *int64     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
	IsActive   bool       `json:"is_active"`
}

// Note is a free-text board note.
type Note struct {
	ID        int64      `json:"id"`
	Text      string     `json:"text"`
	CreatedBy *int64     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	IsActive  bool       `json:"is_active"`
}

// ShiftEntry is a shift-handover record. Entries are append-only until deleted.
type ShiftEntry struct {
	ID            int64     `json:"id"`
	ShiftType     string    `json:"shift_type"`
	Focus         string    `json:"focus"`
	ETA           string    `json:"eta"`
	Notes         string    `json:"notes"`
	CreatedBy     *int64    `json:"created_by"`
	CreatedByName string    `json:"created_by_name"`
	CreatedAt     time.Time `json:"created_at"`
}

// Setting is one entry of the flat key/value settings map.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActivityEntry is one row of the append-only audit trail.
type ActivityEntry struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id"`
	UserName   string    `json:"user_name"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stats holds the active counts shown on the board header.
type Stats struct {
	Out         int `json:"outCount"`
	Low         int `json:"lowCount"`
	Maintenance int `json:"maintCount"`
	Notes       int `json:"notesCount"`
}

// UserStore is the user persistence surface used by authentication.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByName(ctx context.Context, name string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	TouchLastLogin(ctx context.Context, id int64) error
	CountAdmins(ctx context.Context) (int, error)
}

// BoardStore is the persistence surface behind the board operations.
type BoardStore interface {
	// Stock
	CreateStockItem(ctx context.Context, item *StockItem) error
	ResolveStockItem(ctx context.Context, id int64) (bool, error)
	ListStockItems(ctx context.Context, category StockCategory, activeOnly bool) ([]*StockItem, error)

	// Maintenance
	CreateMaintenanceTicket(ctx context.Context, t *MaintenanceTicket) error
	ResolveMaintenanceTicket(ctx context.Context, id int64) (bool, error)
	ListMaintenanceTickets(ctx context.Context, activeOnly bool) ([]*MaintenanceTicket, error)

	// Notes
	CreateNote(ctx context.Context, n *Note) error
	ResolveNote(ctx context.Context, id int64) (bool, error)
	ListNotes(ctx context.Context, activeOnly bool) ([]*Note, error)

	// Shift log
	CreateShiftEntry(ctx context.Context, e *ShiftEntry) error
	DeleteShiftEntry(ctx context.Context, id int64) (bool, error)
	ListShiftEntries(ctx context.Context, limit int) ([]*ShiftEntry, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	ListSettings(ctx context.Context) ([]*Setting, error)

	// Activity
	AppendActivity(ctx context.Context, e *ActivityEntry) error
	ListActivity(ctx context.Context, limit int) ([]*ActivityEntry, error)

	CountActive(ctx context.Context) (Stats, error)
}

// Ensure SQLiteStore implements both interfaces.
var (
	_ UserStore  = (*SQLiteStore)(nil)
	_ BoardStore = (*SQLiteStore)(nil)
)
