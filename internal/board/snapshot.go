// ABOUTME: Aggregate board snapshot assembled from independent reads
// ABOUTME: Not transactional; a concurrent write may briefly skew counts against lists

package board

import (
	"context"
	"fmt"

	"github.com/2389/opsboard/internal/store"
)

// SnapshotShiftLogLimit bounds the shift log included in a snapshot.
const SnapshotShiftLogLimit = 20

// Snapshot is everything a client needs to render the board.
type Snapshot struct {
	Out         []*store.StockItem         `json:"out"`
	Low         []*store.StockItem         `json:"low"`
	Maintenance []*store.MaintenanceTicket `json:"maint"`
	Notes       []*store.Note              `json:"notes"`
	ShiftLog    []*store.ShiftEntry        `json:"shiftLog"`
	Settings    map[string]string          `json:"settings"`
	Stats       store.Stats                `json:"stats"`
}

// Snapshot reads the active board state.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	var err error

	if snap.Out, err = s.store.ListStockItems(ctx, store.CategoryOut, true); err != nil {
		return nil, fmt.Errorf("reading out-of-stock items: %w", err)
	}
	if snap.Low, err = s.store.ListStockItems(ctx, store.CategoryLow, true); err != nil {
		return nil, fmt.Errorf("reading low-stock items: %w", err)
	}
	if snap.Maintenance, err = s.store.ListMaintenanceTickets(ctx, true); err != nil {
		return nil, fmt.Errorf("reading maintenance tickets: %w", err)
	}
	if snap.Notes, err = s.store.ListNotes(ctx, true); err != nil {
		return nil, fmt.Errorf("reading notes: %w", err)
	}
	if snap.ShiftLog, err = s.store.ListShiftEntries(ctx, SnapshotShiftLogLimit); err != nil {
		return nil, fmt.Errorf("reading shift log: %w", err)
	}
	if snap.Settings, err = s.Settings(ctx); err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if snap.Stats, err = s.store.CountActive(ctx); err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	snap.normalize()
	return &snap, nil
}

// normalize replaces nil slices so they encode as [] rather than null.
func (snap *Snapshot) normalize() {
	if snap.Out == nil {
		snap.Out = []*store.StockItem{}
	}
	if snap.Low == nil {
		snap.Low = []*store.StockItem{}
	}
	if snap.Maintenance == nil {
		snap.Maintenance = []*store.MaintenanceTicket{}
	}
	if snap.Notes == nil {
		snap.Notes = []*store.Note{}
	}
	if snap.ShiftLog == nil {
		snap.ShiftLog = []*store.ShiftEntry{}
	}
	if snap.Settings == nil {
		snap.Settings = map[string]string{}
	}
}
