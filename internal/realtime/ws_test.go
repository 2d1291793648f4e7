// ABOUTME: End-to-end tests for the WebSocket board endpoint
// ABOUTME: Two real clients over httptest verify join, presence and exactly-once refresh

package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/opsboard/internal/auth"
	"github.com/2389/opsboard/internal/store"
)

const markerEvent = "test-marker"

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type testBoard struct {
	hub      *Hub
	sessions *auth.Sessions
	url      string
}

func newTestBoard(t *testing.T) *testBoard {
	t.Helper()
	sessions, err := auth.NewSessions([]byte("realtime-test-secret-0123456789"), time.Hour)
	require.NoError(t, err)

	hub := NewHub(nil, nil)
	srv := httptest.NewServer(NewHandler(hub, sessions, HandlerOptions{}))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})

	return &testBoard{hub: hub, sessions: sessions, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (b *testBoard) token(t *testing.T, id int64, name string) string {
	t.Helper()
	tok, _, err := b.sessions.Issue(&store.User{ID: id, Name: name, Role: store.RoleStaff})
	require.NoError(t, err)
	return tok
}

func (b *testBoard) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, b.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, msg))
}

func read(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var ev wireEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	return ev
}

// readUntil reads events until one named name arrives, returning everything before it.
func readUntil(t *testing.T, conn *websocket.Conn, name string) []wireEvent {
	t.Helper()
	var seen []wireEvent
	for {
		ev := read(t, conn)
		if ev.Event == name {
			return seen
		}
		seen = append(seen, ev)
	}
}

func count(events []wireEvent, name string) int {
	n := 0
	for _, ev := range events {
		if ev.Event == name {
			n++
		}
	}
	return n
}

func (b *testBoard) join(t *testing.T, id int64, name string) *websocket.Conn {
	t.Helper()
	conn := b.dial(t)
	send(t, conn, ClientMessage{Event: EventJoinBoard, Token: b.token(t, id, name)})
	ev := read(t, conn)
	require.Equal(t, EventJoined, ev.Event)
	return conn
}

func TestWS_EachClientGetsExactlyOneRefreshPerMutation(t *testing.T) {
	board := newTestBoard(t)

	alice := board.join(t, 1, "Alice")
	bob := board.join(t, 2, "Bob")

	board.hub.Invalidate()
	board.hub.Publish(Event{Name: markerEvent}, "")

	for _, conn := range []*websocket.Conn{alice, bob} {
		before := readUntil(t, conn, markerEvent)
		assert.Equal(t, 1, count(before, EventSync))
	}
}

func TestWS_PresenceEvents(t *testing.T) {
	board := newTestBoard(t)

	alice := board.join(t, 1, "Alice")
	bob := board.join(t, 2, "Bob")

	ev := read(t, alice)
	assert.Equal(t, EventUserJoined, ev.Event)
	assert.JSONEq(t, `{"name":"Bob"}`, string(ev.Data))

	// The joiner is not told about itself.
	board.hub.Publish(Event{Name: markerEvent}, "")
	assert.Zero(t, count(readUntil(t, bob, markerEvent), EventUserJoined))

	_ = bob.Close(websocket.StatusNormalClosure, "")

	ev = read(t, alice)
	assert.Equal(t, EventUserLeft, ev.Event)
	assert.JSONEq(t, `{"name":"Bob"}`, string(ev.Data))

	require.Eventually(t, func() bool { return board.hub.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWS_InvalidTokenCanRetry(t *testing.T) {
	board := newTestBoard(t)
	conn := board.dial(t)

	send(t, conn, ClientMessage{Event: EventJoinBoard, Token: "garbage"})
	ev := read(t, conn)
	assert.Equal(t, EventAuthError, ev.Event)
	assert.JSONEq(t, `"Invalid token"`, string(ev.Data))
	assert.Zero(t, board.hub.Count(), "rejected client is not subscribed")

	send(t, conn, ClientMessage{Event: EventJoinBoard, Token: board.token(t, 5, "Sam")})
	ev = read(t, conn)
	assert.Equal(t, EventJoined, ev.Event)
	assert.Equal(t, 1, board.hub.Count())
}

func TestWS_UnjoinedClientReceivesNothing(t *testing.T) {
	board := newTestBoard(t)
	joined := board.join(t, 1, "Alice")
	lurker := board.dial(t)

	send(t, lurker, ClientMessage{Event: EventUpdate})
	board.hub.Invalidate()
	board.hub.Publish(Event{Name: markerEvent}, "")

	// Only the joined client sees the refresh.
	assert.Equal(t, 1, count(readUntil(t, joined, markerEvent), EventSync))
	assert.Equal(t, 1, board.hub.Count())
}

func TestWS_ClientUpdateGoesToOthersOnly(t *testing.T) {
	board := newTestBoard(t)

	alice := board.join(t, 1, "Alice")
	bob := board.join(t, 2, "Bob")
	readUntil(t, alice, EventUserJoined)

	send(t, alice, ClientMessage{Event: EventUpdate})

	before := readUntil(t, bob, EventSync)
	assert.Empty(t, before)

	board.hub.Publish(Event{Name: markerEvent}, "")
	assert.Zero(t, count(readUntil(t, alice, markerEvent), EventSync))
}
