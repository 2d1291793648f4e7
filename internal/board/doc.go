// Package board implements the kitchen operations board on top of the store.
//
// Every mutation goes through Service so that the write, its activity log
// row and the realtime invalidation happen in a fixed order:
//
//  1. validate input (returns *ValidationError, store untouched)
//  2. write to the store (errors are returned to the caller)
//  3. append the activity row (failures are logged and counted only)
//  4. call Notifier.Invalidate exactly once
//
// Resolving or deleting an id that is missing or already inactive is not an
// error. It skips the activity row but still invalidates, so the activity
// trail holds effective changes only. Concurrent resolves of the same id are
// safe: one of them stamps resolved_at and writes the row, the rest are no-ops.
//
// Snapshot assembles the full board from independent reads, and RenderBrief
// turns a snapshot into the printable ops brief.
package board
