// Package store provides persistent storage for the kitchen operations board using SQLite.
//
// # Architecture
//
// Two interfaces describe the storage surface:
//
//   - UserStore: board users and PIN hashes, used by sign-in
//   - BoardStore: stock items, maintenance tickets, notes, shift log,
//     settings, activity log and active counts
//
// SQLiteStore implements both in a single struct.
//
// # Soft deletes
//
// Stock items, maintenance tickets and notes are never removed. Resolving one
// clears is_active and, for stock and maintenance, stamps resolved_at. The
// UPDATE only matches active rows, so the stamp is written at most once and a
// repeated resolve reports changed=false. Shift log entries are hard-deleted.
//
// # SQLite Configuration
//
// File databases run in WAL mode with a 5s busy timeout:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Timestamps are stored as fixed-width UTC text so that ORDER BY created_at
// is chronological. Ties are broken by descending id.
//
// # Migrations
//
// Migrations are embedded and applied with goose on Open. Migration files are
// in internal/store/migrations/ with numeric prefixes.
package store
