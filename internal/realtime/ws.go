// ABOUTME: WebSocket endpoint joining clients to the board channel
// ABOUTME: Clients authenticate with a join-board message carrying their session token

package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/2389/opsboard/internal/auth"
	"github.com/2389/opsboard/internal/metrics"
)

const (
	// DefaultPingInterval is how often idle connections are pinged.
	DefaultPingInterval = 30 * time.Second

	writeTimeout = 5 * time.Second
	readLimit    = 4096
)

// ClientMessage is one client-to-server message.
type ClientMessage struct {
	Event string `json:"event"`
	Token string `json:"token,omitempty"`
}

// HandlerOptions configures the WebSocket handler.
type HandlerOptions struct {
	PingInterval   time.Duration
	OriginPatterns []string // passed to websocket.AcceptOptions; empty means same-origin only
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Handler upgrades HTTP requests to board connections.
type Handler struct {
	hub       *Hub
	validator auth.SessionValidator
	opts      HandlerOptions
	logger    *slog.Logger
}

// NewHandler creates the /ws handler.
func NewHandler(hub *Hub, validator auth.SessionValidator, opts HandlerOptions) *Handler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:       hub,
		validator: validator,
		opts:      opts,
		logger:    logger.With("component", "ws"),
	}
}

// ServeHTTP runs one connection until the peer goes away or the request context ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		h.logger.Debug("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	h.opts.Metrics.ClientConnected(1)
	defer h.opts.Metrics.ClientConnected(-1)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &connState{handler: h, conn: conn}
	err = s.run(ctx)

	if s.session != nil {
		h.hub.Unsubscribe(s.subID)
		h.hub.Publish(presenceEvent(EventUserLeft, s.session.Name), "")
		h.logger.Info("user left board", "name", s.session.Name)
	}

	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	if err != nil {
		h.logger.Debug("connection ended", "error", err)
	}
	conn.Close(websocket.StatusInternalError, "")
}

// connState is the per-connection state, touched only by the run goroutine.
type connState struct {
	handler *Handler
	conn    *websocket.Conn
	session *auth.Session
	subID   string
	events  <-chan Event
}

func (s *connState) run(ctx context.Context) error {
	incoming := make(chan ClientMessage)
	readErr := make(chan error, 1)

	go func() {
		for {
			var msg ClientMessage
			if err := wsjson.Read(ctx, s.conn, &msg); err != nil {
				readErr <- err
				return
			}
			select {
			case incoming <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(s.handler.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			return err

		case msg := <-incoming:
			if err := s.handle(ctx, msg); err != nil {
				return err
			}

		case ev, ok := <-s.events:
			if !ok {
				// Hub closed during shutdown.
				return context.Canceled
			}
			if err := s.write(ctx, ev); err != nil {
				return err
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (s *connState) handle(ctx context.Context, msg ClientMessage) error {
	switch msg.Event {
	case EventJoinBoard:
		return s.join(ctx, msg.Token)
	case EventUpdate:
		if s.session == nil {
			return nil
		}
		s.handler.hub.Publish(RefreshEvent(), s.subID)
		return nil
	default:
		s.handler.logger.Debug("ignoring unknown client event", "event", msg.Event)
		return nil
	}
}

func (s *connState) join(ctx context.Context, token string) error {
	session, err := s.handler.validator.Validate(token)
	if err != nil {
		// The client may retry with a fresh token on the same connection.
		s.handler.logger.Debug("board join rejected", "error", err)
		return s.write(ctx, Event{Name: EventAuthError, Data: "Invalid token"})
	}

	if s.session == nil {
		s.events, s.subID = s.handler.hub.Subscribe(ctx)
		s.handler.hub.Publish(presenceEvent(EventUserJoined, session.Name), s.subID)
		s.handler.logger.Info("user joined board", "name", session.Name)
	}
	s.session = session

	return s.write(ctx, presenceEvent(EventJoined, session.Name))
}

func (s *connState) write(ctx context.Context, ev Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, s.conn, ev)
}
