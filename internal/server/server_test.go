// ABOUTME: End-to-end tests for the assembled server
// ABOUTME: A real listener serves login, REST writes and the realtime channel together

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/opsboard/internal/config"
	"github.com/2389/opsboard/internal/realtime"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Database.Path = filepath.Join(t.TempDir(), "server.db")
	cfg.Auth.JWTSecret = "server-test-secret-0123456789"
	cfg.Auth.SessionExpiry = time.Hour
	cfg.RateLimit.Window = 15 * time.Minute
	cfg.Realtime.PingInterval = 30 * time.Second
	cfg.Board.TimeZone = "UTC"
	return cfg
}

func startServer(t *testing.T, cfg *config.Config) (*Server, string) {
	t.Helper()
	srv, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("server did not shut down")
		}
	})

	addr := srv.Addr()
	require.NotNil(t, addr)
	return srv, addr.String()
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

type wsEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func login(t *testing.T, base, name, pin string) string {
	t.Helper()
	resp := postJSON(t, base+"/api/auth/login", "", map[string]string{"name": name, "pin": pin})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func joinBoard(ctx context.Context, t *testing.T, addr, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	require.NoError(t, wsjson.Write(ctx, conn, realtime.ClientMessage{Event: realtime.EventJoinBoard, Token: token}))
	var ev wsEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	require.Equal(t, realtime.EventJoined, ev.Event)
	return conn
}

// syncsBefore reads frames until one named marker arrives and counts sync frames before it.
func syncsBefore(ctx context.Context, t *testing.T, conn *websocket.Conn, marker string) int {
	t.Helper()
	n := 0
	for {
		var ev wsEvent
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		switch ev.Event {
		case marker:
			return n
		case realtime.EventSync:
			assert.JSONEq(t, `{"type":"refresh"}`, string(ev.Data))
			n++
		}
	}
}

func TestServer_LoginWriteAndRealtimeRefresh(t *testing.T) {
	srv, addr := startServer(t, testConfig(t))
	base := "http://" + addr

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	writerToken := login(t, base, "Head Chef", "1234")
	writer := joinBoard(ctx, t, addr, writerToken)
	watcher := joinBoard(ctx, t, addr, login(t, base, "head chef", "1234"))

	resp := postJSON(t, base+"/api/stock", writerToken, map[string]string{"category": "out", "item": "Burrata"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	const marker = "end-of-test"
	srv.hub.Publish(realtime.Event{Name: marker}, "")

	assert.Equal(t, 1, syncsBefore(ctx, t, watcher, marker), "other client gets exactly one refresh")
	assert.Equal(t, 1, syncsBefore(ctx, t, writer, marker), "writing client is refreshed too")
}

func TestServer_SeedsOnce(t *testing.T) {
	cfg := testConfig(t)

	srv, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	admins, err := srv.Store().CountAdmins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, admins)
	require.NoError(t, srv.closeComponents())

	// A restart with a different admin name does not add a second admin.
	cfg.Auth.AdminName = "Another Chef"
	srv, err = New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer srv.closeComponents()

	admins, err = srv.Store().CountAdmins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, admins)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	_, addr := startServer(t, testConfig(t))

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestServer_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	_, addr := startServer(t, cfg)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_GeneratesSecretWhenUnset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = ""

	srv, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer srv.closeComponents()
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"kitchen.local", "board.example.com:8443"},
		originPatterns([]string{"http://kitchen.local", "https://board.example.com:8443"}))
	assert.Equal(t, []string{"*"}, originPatterns([]string{"http://a", "*"}))
	assert.Empty(t, originPatterns(nil))
}
