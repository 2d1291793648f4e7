// ABOUTME: Tests for the in-memory board hub
// ABOUTME: Covers fan-out, exclusion, slow subscribers, auto-unsubscribe and close

package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %q", ev.Name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_InvalidateReachesEverySubscriber(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx := context.Background()

	a, _ := hub.Subscribe(ctx)
	b, _ := hub.Subscribe(ctx)

	hub.Invalidate()

	for _, ch := range []<-chan Event{a, b} {
		ev := receive(t, ch)
		assert.Equal(t, EventSync, ev.Name)
		assert.Equal(t, map[string]string{"type": "refresh"}, ev.Data)
		assertNoEvent(t, ch)
	}
}

func TestHub_PublishExcludesSender(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx := context.Background()

	sender, senderID := hub.Subscribe(ctx)
	other, _ := hub.Subscribe(ctx)

	hub.Publish(presenceEvent(EventUserJoined, "Sam"), senderID)

	ev := receive(t, other)
	assert.Equal(t, EventUserJoined, ev.Name)
	assertNoEvent(t, sender)
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(nil, nil)
	slow, _ := hub.Subscribe(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize+10; i++ {
			hub.Invalidate()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, slow, subscriberBufferSize)
}

func TestHub_UnsubscribeOnContextCancel(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := hub.Subscribe(ctx)
	assert.Equal(t, 1, hub.Count())

	cancel()

	require.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
}

func TestHub_UnsubscribeTwiceIsSafe(t *testing.T) {
	hub := NewHub(nil, nil)
	_, id := hub.Subscribe(context.Background())

	hub.Unsubscribe(id)
	assert.NotPanics(t, func() { hub.Unsubscribe(id) })
	assert.NotPanics(t, func() { hub.Invalidate() })
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(nil, nil)
	ch, _ := hub.Subscribe(context.Background())

	hub.Close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, hub.Count())

	late, _ := hub.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok, "subscriptions after close are already closed")
}
