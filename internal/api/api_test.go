// ABOUTME: Shared fixtures for REST handler tests
// ABOUTME: Runs the real router over a temp-dir SQLite store with seeded users

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/opsboard/internal/auth"
	"github.com/2389/opsboard/internal/board"
	"github.com/2389/opsboard/internal/metrics"
	"github.com/2389/opsboard/internal/ratelimit"
	"github.com/2389/opsboard/internal/store"
)

var fixedNow = time.Date(2024, 3, 5, 18, 30, 0, 0, time.UTC)

type countingNotifier struct {
	n atomic.Int64
}

func (c *countingNotifier) Invalidate() { c.n.Add(1) }

type testEnv struct {
	api        *API
	store      *store.SQLiteStore
	notifier   *countingNotifier
	metrics    *metrics.Metrics
	adminToken string
	staffToken string
	staffID    int64
}

type envOption func(*Options)

func withLimiter(l *ratelimit.Limiter) envOption {
	return func(o *Options) { o.Limiter = l }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "api.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sessions, err := auth.NewSessions([]byte("api-test-secret-0123456789"), time.Hour)
	require.NoError(t, err)
	authn := auth.NewAuthenticator(st, sessions, nil)

	admin, err := authn.CreateUser(ctx, "Head Chef", "1234", store.RoleAdmin)
	require.NoError(t, err)
	staff, err := authn.CreateUser(ctx, "Sam", "5678", store.RoleStaff)
	require.NoError(t, err)
	_, err = st.Seed(ctx, store.SeedOptions{SkipDemo: true})
	require.NoError(t, err)

	adminToken, _, err := sessions.Issue(admin)
	require.NoError(t, err)
	staffToken, _, err := sessions.Issue(staff)
	require.NoError(t, err)

	notifier := &countingNotifier{}
	m := metrics.New()
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	o := Options{
		Board:       board.New(st, notifier, nil, board.WithMetrics(m)),
		Auth:        authn,
		Sessions:    sessions,
		DB:          st,
		Metrics:     m,
		MetricsPath: "/metrics",
		Location:    london,
		Now:         func() time.Time { return fixedNow },
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &testEnv{
		api:        New(o),
		store:      st,
		notifier:   notifier,
		metrics:    m,
		adminToken: adminToken,
		staffToken: staffToken,
		staffID:    staff.ID,
	}
}

// do sends a request through the router. body may be nil, a string, or a value to encode.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.api.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
