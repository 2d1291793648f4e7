// ABOUTME: Per-client token-bucket rate limiting for the REST API
// ABOUTME: Buckets live in a size-bounded table whose idle entries expire

package ratelimit

import (
	"container/list"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/2389/opsboard/internal/metrics"
)

// Message is the error returned to limited clients.
const Message = "Too many requests, please try again later."

// DefaultMaxClients bounds the bucket table.
const DefaultMaxClients = 10000

// bucket stores a client's limiter and its position in the idle order.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	element  *list.Element
}

// Limiter allows each client Requests requests per Window, refilling smoothly.
// Buckets untouched for a whole window are dropped, and when the table is
// full the least recently seen client is evicted.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	order      *list.List // keys, least recently seen at front
	limit      rate.Limit
	burst      int
	window     time.Duration
	maxClients int
	now        func() time.Time
	done       chan struct{}
	closed     bool
}

// New creates a limiter permitting requests per window for each client.
// A background goroutine periodically removes idle buckets.
func New(requests int, window time.Duration, maxClients int) *Limiter {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	l := &Limiter{
		buckets:    make(map[string]*bucket),
		order:      list.New(),
		limit:      rate.Every(window / time.Duration(requests)),
		burst:      requests,
		window:     window,
		maxClients: maxClients,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow reports whether key may make a request now. When it may not, the
// returned duration is how long until it may.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if ok {
		b.lastSeen = now
		l.order.MoveToBack(b.element)
	} else {
		if len(l.buckets) >= l.maxClients {
			l.evictOldest()
		}
		b = &bucket{
			limiter:  rate.NewLimiter(l.limit, l.burst),
			lastSeen: now,
			element:  l.order.PushBack(key),
		}
		l.buckets[key] = b
	}

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// evictOldest removes the least recently seen bucket. Must be called with mu held.
func (l *Limiter) evictOldest() {
	front := l.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	l.order.Remove(front)
	delete(l.buckets, key)
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

// sweep drops buckets idle for a full window; by then they have refilled completely.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for e := l.order.Front(); e != nil; {
		key, _ := e.Value.(string)
		b := l.buckets[key]
		if now.Sub(b.lastSeen) < l.window {
			// Order is by lastSeen, so everything after is fresher.
			return
		}
		next := e.Next()
		l.order.Remove(e)
		delete(l.buckets, key)
		e = next
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		close(l.done)
		l.closed = true
	}
}

// Middleware rejects requests over the limit with 429. Clients are keyed by
// the host part of RemoteAddr. Forwarding headers only count when a trusted
// proxy middleware has already rewritten RemoteAddr.
func (l *Limiter) Middleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryAfter := l.Allow(clientKey(r))
			if !ok {
				m.RateLimited()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": Message})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
