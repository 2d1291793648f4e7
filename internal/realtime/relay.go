// ABOUTME: Redis pub/sub relay carrying board invalidations between server processes
// ABOUTME: Every process, including the publisher, refreshes its local hub from the subscription

package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRelayChannel is the Redis channel used when none is configured.
const DefaultRelayChannel = "opsboard:invalidate"

const publishTimeout = 2 * time.Second

// broker is the slice of Redis pub/sub the relay needs.
type broker interface {
	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error)
	Close() error
}

// Relay implements board.Notifier across processes. Invalidate publishes to
// Redis; Run turns every received message into one local hub invalidation.
type Relay struct {
	hub     *Hub
	broker  broker
	channel string
	origin  string
	logger  *slog.Logger
}

// NewRelay connects to Redis at redisURL and verifies connectivity.
func NewRelay(ctx context.Context, hub *Hub, redisURL, channel string, logger *slog.Logger) (*Relay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRelay(hub, &redisBroker{client: client}, channel, logger), nil
}

func newRelay(hub *Hub, b broker, channel string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = DefaultRelayChannel
	}
	host, _ := os.Hostname()
	return &Relay{
		hub:     hub,
		broker:  b,
		channel: channel,
		origin:  host + "/" + uuid.New().String()[:8],
		logger:  logger.With("component", "relay"),
	}
}

// Invalidate publishes an invalidation without blocking the caller. If Redis
// is unreachable the local hub is refreshed directly so this process's
// clients still see the change.
func (r *Relay) Invalidate() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := r.broker.Publish(ctx, r.channel, r.origin); err != nil {
			r.logger.Warn("relay publish failed, refreshing locally", "error", err)
			r.hub.Invalidate()
		}
	}()
}

// Run consumes the Redis subscription until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	msgs, unsubscribe, err := r.broker.Subscribe(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}
	defer unsubscribe()

	r.logger.Info("relay subscribed", "channel", r.channel, "origin", r.origin)

	for {
		select {
		case <-ctx.Done():
			return nil
		case origin, ok := <-msgs:
			if !ok {
				// The forwarder also closes msgs on cancellation.
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("relay subscription closed")
			}
			r.logger.Debug("relay invalidation received", "origin", origin)
			r.hub.Invalidate()
		}
	}
}

// Close releases the Redis connection.
func (r *Relay) Close() error {
	return r.broker.Close()
}

// redisBroker adapts a go-redis client to broker.
type redisBroker struct {
	client *redis.Client
}

func (b *redisBroker) Publish(ctx context.Context, channel, payload string) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *redisBroker) Subscribe(ctx context.Context, channel string) (<-chan string, func() error, error) {
	ps := b.client.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so no publish is missed after Run starts.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, ps.Close, nil
}

func (b *redisBroker) Close() error {
	return b.client.Close()
}
