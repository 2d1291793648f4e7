// ABOUTME: Tests for the board Service
// ABOUTME: Verifies lifecycle semantics, audit rows, invalidation counts and snapshots

package board

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/opsboard/internal/metrics"
	"github.com/2389/opsboard/internal/store"
)

// countingNotifier records how often the board was invalidated.
type countingNotifier struct {
	n atomic.Int64
}

func (c *countingNotifier) Invalidate() { c.n.Add(1) }

func (c *countingNotifier) count() int64 { return c.n.Load() }

// failingAuditStore breaks only the activity log.
type failingAuditStore struct {
	*store.SQLiteStore
}

func (failingAuditStore) AppendActivity(context.Context, *store.ActivityEntry) error {
	return errors.New("database is locked")
}

func createTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "board.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestService(t *testing.T) (*Service, *store.SQLiteStore, *countingNotifier) {
	t.Helper()
	st := createTestStore(t)
	n := &countingNotifier{}
	return New(st, n, nil), st, n
}

func actorFor(t *testing.T, st *store.SQLiteStore, name string) *int64 {
	t.Helper()
	u := &store.User{Name: name, PINHash: "x"}
	require.NoError(t, st.CreateUser(context.Background(), u))
	return &u.ID
}

func TestService_BuffaloMozzarellaLifecycle(t *testing.T) {
	svc, st, notifier := newTestService(t)
	ctx := context.Background()
	chef := actorFor(t, st, "Head Chef")

	id, err := svc.AddStock(ctx, StockInput{Category: "out", Item: "  Buffalo Mozzarella  "}, chef)
	require.NoError(t, err)
	assert.Equal(t, int64(1), notifier.count())

	active, err := svc.ListStock(ctx, "out", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Buffalo Mozzarella", active[0].Item)
	assert.Equal(t, store.SeverityLow, active[0].Severity)

	require.NoError(t, svc.ResolveStock(ctx, id, chef))
	assert.Equal(t, int64(2), notifier.count())

	active, err = svc.ListStock(ctx, "out", true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListStock(ctx, "out", false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.NotNil(t, all[0].ResolvedAt)
	assert.False(t, all[0].IsActive)

	activity, err := svc.Activity(ctx, 0)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, store.ActionResolve, activity[0].Action)
	assert.Equal(t, "Head Chef", activity[0].UserName)
	assert.Equal(t, "Added out: Buffalo Mozzarella", activity[1].Details)
	assert.Equal(t, id, activity[1].EntityID)
}

func TestService_RepeatResolveSucceedsWithoutSecondAudit(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	id, err := svc.AddMaintenance(ctx, MaintenanceInput{Item: "Pizza oven"}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.ResolveMaintenance(ctx, id, nil))
	require.NoError(t, svc.ResolveMaintenance(ctx, id, nil))
	require.NoError(t, svc.ResolveMaintenance(ctx, 9999, nil))

	assert.Equal(t, int64(4), notifier.count(), "every call invalidates once")

	activity, err := svc.Activity(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, activity, 2, "add + one resolve")
}

func TestService_ConcurrentResolveOfSameID(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	id, err := svc.AddStock(ctx, StockInput{Category: "low", Item: "Basil"}, nil)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.ResolveStock(ctx, id, nil)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(workers+1), notifier.count(), "add plus one invalidation per resolve call")

	all, err := svc.ListStock(ctx, "low", false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)
	assert.NotNil(t, all[0].ResolvedAt)

	activity, err := svc.Activity(ctx, 0)
	require.NoError(t, err)
	resolves := 0
	for _, e := range activity {
		if e.Action == store.ActionResolve && e.EntityID == id {
			resolves++
		}
	}
	assert.Equal(t, 1, resolves, "only the effective resolve is audited")
}

func TestService_Validation(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"stock blank item", func() error {
			_, err := svc.AddStock(ctx, StockInput{Category: "out", Item: "   "}, nil)
			return err
		}},
		{"stock bad category", func() error {
			_, err := svc.AddStock(ctx, StockInput{Category: "gone", Item: "Basil"}, nil)
			return err
		}},
		{"stock bad severity", func() error {
			_, err := svc.AddStock(ctx, StockInput{Category: "low", Item: "Basil", Severity: "urgent"}, nil)
			return err
		}},
		{"maintenance blank item", func() error {
			_, err := svc.AddMaintenance(ctx, MaintenanceInput{Item: ""}, nil)
			return err
		}},
		{"maintenance negative priority", func() error {
			_, err := svc.AddMaintenance(ctx, MaintenanceInput{Item: "Oven", Priority: -1}, nil)
			return err
		}},
		{"note blank", func() error {
			_, err := svc.AddNote(ctx, NoteInput{Text: "\t"}, nil)
			return err
		}},
		{"shift missing focus", func() error {
			_, err := svc.AddShiftEntry(ctx, ShiftInput{ShiftType: "AM"}, nil)
			return err
		}},
		{"setting blank key", func() error {
			return svc.SetSetting(ctx, " ", "x", nil)
		}},
		{"list bad category", func() error {
			_, err := svc.ListStock(ctx, "all", true)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}

	assert.Zero(t, notifier.count(), "rejected input must not invalidate")
}

func TestService_NotesAreNotAudited(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	id, err := svc.AddNote(ctx, NoteInput{Text: "Prep basil"}, nil)
	require.NoError(t, err)
	require.NoError(t, svc.ResolveNote(ctx, id, nil))

	assert.Equal(t, int64(2), notifier.count())

	activity, err := svc.Activity(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, activity)
}

func TestService_ShiftEntryDelete(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.AddShiftEntry(ctx, ShiftInput{ShiftType: "AM", Focus: "Prep", ETA: "11:30"}, nil)
	require.NoError(t, err)

	log, err := svc.ListShiftLog(ctx, 0)
	require.NoError(t, err)
	require.Len(t, log, 1)

	require.NoError(t, svc.DeleteShiftEntry(ctx, id, nil))
	require.NoError(t, svc.DeleteShiftEntry(ctx, id, nil))

	log, err = svc.ListShiftLog(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, log)

	activity, err := svc.Activity(ctx, 0)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, "Deleted shift entry", activity[0].Details)
	assert.Equal(t, "Shift handover: AM", activity[1].Details)
}

func TestService_SettingsUpsert(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetSetting(ctx, "floor_lead", "Sam", nil))
	require.NoError(t, svc.SetSetting(ctx, "floor_lead", "Alex", nil))

	settings, err := svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"floor_lead": "Alex"}, settings)
	assert.Equal(t, int64(2), notifier.count())
}

func TestService_AuditFailureIsSwallowed(t *testing.T) {
	st := createTestStore(t)
	notifier := &countingNotifier{}
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)
	svc := New(failingAuditStore{st}, notifier, nil, WithMetrics(m))
	ctx := context.Background()

	id, err := svc.AddStock(ctx, StockInput{Category: "low", Item: "Flour"}, nil)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, int64(1), notifier.count())

	items, err := st.ListStockItems(ctx, store.CategoryLow, true)
	require.NoError(t, err)
	assert.Len(t, items, 1, "write stands even though audit failed")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var failures float64
	for _, mf := range mfs {
		if mf.GetName() == "opsboard_audit_failures_total" {
			failures = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, failures)
}

func TestService_SnapshotCountsMatchLists(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	_, err := st.Seed(ctx, store.SeedOptions{AdminName: "Head Chef", AdminPINHash: "x"})
	require.NoError(t, err)

	_, err = svc.AddStock(ctx, StockInput{Category: "out", Item: "Burrata"}, nil)
	require.NoError(t, err)
	lowID, err := svc.AddStock(ctx, StockInput{Category: "low", Item: "Flour"}, nil)
	require.NoError(t, err)
	require.NoError(t, svc.ResolveStock(ctx, lowID, nil))

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	assert.Len(t, snap.Out, snap.Stats.Out)
	assert.Len(t, snap.Low, snap.Stats.Low)
	assert.Len(t, snap.Maintenance, snap.Stats.Maintenance)
	assert.Len(t, snap.Notes, snap.Stats.Notes)
	assert.Equal(t, 2, snap.Stats.Out)
	assert.Equal(t, 1, snap.Stats.Low)
	assert.Equal(t, "Basil & Grape", snap.Settings["restaurant_name"])
}

func TestService_EmptySnapshotEncodesEmptyLists(t *testing.T) {
	svc, _, _ := newTestService(t)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap.Out)
	assert.NotNil(t, snap.ShiftLog)
	assert.NotNil(t, snap.Settings)
	assert.Equal(t, store.Stats{}, snap.Stats)
}
