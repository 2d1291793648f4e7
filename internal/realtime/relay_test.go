// ABOUTME: Tests for the cross-process invalidation relay
// ABOUTME: Uses an in-memory broker standing in for Redis pub/sub

package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBroker fans published payloads out to every subscriber, like a Redis channel.
type memBroker struct {
	mu         sync.Mutex
	subs       []chan string
	publishErr error
	subscribed chan struct{}
}

func newMemBroker() *memBroker {
	return &memBroker{subscribed: make(chan struct{}, 8)}
}

func (b *memBroker) Publish(_ context.Context, _ string, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	for _, ch := range b.subs {
		ch <- payload
	}
	return nil
}

func (b *memBroker) Subscribe(_ context.Context, _ string) (<-chan string, func() error, error) {
	b.mu.Lock()
	ch := make(chan string, 16)
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	b.subscribed <- struct{}{}
	return ch, func() error { return nil }, nil
}

func (b *memBroker) Close() error { return nil }

func startRelay(t *testing.T, b *memBroker) (*Relay, *Hub) {
	t.Helper()
	hub := NewHub(nil, nil)
	relay := newRelay(hub, b, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-b.subscribed:
	case <-time.After(time.Second):
		t.Fatal("relay did not subscribe")
	}
	return relay, hub
}

func TestRelay_InvalidationReachesEveryProcessOnce(t *testing.T) {
	b := newMemBroker()
	relayA, hubA := startRelay(t, b)
	_, hubB := startRelay(t, b)

	clientA, _ := hubA.Subscribe(context.Background())
	clientB, _ := hubB.Subscribe(context.Background())

	relayA.Invalidate()

	for _, ch := range []<-chan Event{clientA, clientB} {
		ev := receive(t, ch)
		assert.Equal(t, EventSync, ev.Name)
		assertNoEvent(t, ch)
	}
}

func TestRelay_PublishFailureFallsBackToLocalHub(t *testing.T) {
	b := newMemBroker()
	relay, hub := startRelay(t, b)
	b.mu.Lock()
	b.publishErr = errors.New("connection refused")
	b.mu.Unlock()

	client, _ := hub.Subscribe(context.Background())
	relay.Invalidate()

	ev := receive(t, client)
	assert.Equal(t, EventSync, ev.Name)
}

// closedBroker hands out a subscription that has already ended.
type closedBroker struct{ memBroker }

func (b *closedBroker) Subscribe(context.Context, string) (<-chan string, func() error, error) {
	ch := make(chan string)
	close(ch)
	return ch, func() error { return nil }, nil
}

func TestRelay_ClosedSubscriptionAfterCancelIsCleanExit(t *testing.T) {
	relay := newRelay(NewHub(nil, nil), &closedBroker{}, "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 20; i++ {
		assert.NoError(t, relay.Run(ctx))
	}
}

func TestRelay_ClosedSubscriptionWhileRunningIsAnError(t *testing.T) {
	relay := newRelay(NewHub(nil, nil), &closedBroker{}, "", nil)
	err := relay.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription closed")
}

func TestRelay_DefaultChannel(t *testing.T) {
	relay := newRelay(NewHub(nil, nil), newMemBroker(), "", nil)
	assert.Equal(t, DefaultRelayChannel, relay.channel)
	require.NotEmpty(t, relay.origin)
}
