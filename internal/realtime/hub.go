// ABOUTME: In-memory fan-out hub for the shared board channel
// ABOUTME: Delivers refresh and presence events to every joined realtime client

package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/opsboard/internal/metrics"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Event names on the wire.
const (
	EventSync       = "sync"
	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"
	EventAuthError  = "auth-error"
	EventJoined     = "joined"

	EventJoinBoard = "join-board"
	EventUpdate    = "update"
)

// Event is one server-to-client message.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// RefreshEvent tells a client to re-fetch the board snapshot. It carries no diff.
func RefreshEvent() Event {
	return Event{Name: EventSync, Data: map[string]string{"type": "refresh"}}
}

func presenceEvent(name, userName string) Event {
	return Event{Name: name, Data: map[string]string{"name": userName}}
}

// Hub provides in-memory pub/sub for board events. There is one board, so
// every subscriber receives every event not explicitly excluded.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	closed      bool
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]chan Event),
		metrics:     m,
		logger:      logger.With("component", "hub"),
	}
}

// Subscribe registers a subscriber and returns its event channel and id.
// The subscription is removed when ctx is cancelled. On a closed hub the
// returned channel is already closed.
func (h *Hub) Subscribe(ctx context.Context) (<-chan Event, string) {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, subID
	}
	h.subscribers[subID] = ch
	h.mu.Unlock()

	h.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		h.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish sends an event to all subscribers except excludeSubID.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (h *Hub) Publish(ev Event, excludeSubID string) {
	h.mu.RLock()
	targets := make([]chan Event, 0, len(h.subscribers))
	for id, ch := range h.subscribers {
		if excludeSubID != "" && id == excludeSubID {
			continue
		}
		targets = append(targets, ch)
	}

	// Sends happen under the read lock so Unsubscribe cannot close a channel mid-send.
	for _, ch := range targets {
		select {
		case ch <- ev:
			h.metrics.Broadcast()
		default:
			h.metrics.Dropped()
			h.logger.Debug("dropped event for slow subscriber", "event", ev.Name)
		}
	}
	h.mu.RUnlock()
}

// Invalidate tells every subscriber, including the one whose request caused
// the change, to re-fetch the board.
func (h *Hub) Invalidate() {
	h.Publish(RefreshEvent(), "")
}

// Unsubscribe removes a subscription and closes its channel.
func (h *Hub) Unsubscribe(subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subscribers[subID]
	if !ok {
		return
	}
	delete(h.subscribers, subID)
	close(ch)

	h.logger.Debug("subscriber removed", "sub_id", subID)
}

// Count returns the number of live subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close closes all subscriber channels. Later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	h.closed = true

	h.logger.Debug("hub closed")
}
