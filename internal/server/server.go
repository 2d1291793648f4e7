// ABOUTME: Server orchestrator that owns the store, realtime hub and HTTP listener
// ABOUTME: Builds every component from configuration and manages their lifecycle

package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/2389/opsboard/internal/api"
	"github.com/2389/opsboard/internal/auth"
	"github.com/2389/opsboard/internal/board"
	"github.com/2389/opsboard/internal/config"
	"github.com/2389/opsboard/internal/metrics"
	"github.com/2389/opsboard/internal/ratelimit"
	"github.com/2389/opsboard/internal/realtime"
	"github.com/2389/opsboard/internal/store"
)

// shutdownTimeout bounds graceful shutdown once the run context is cancelled.
const shutdownTimeout = 5 * time.Second

// Server owns every long-lived component of a running board.
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	store   *store.SQLiteStore
	hub     *realtime.Hub
	relay   *realtime.Relay
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	api     *api.API

	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New opens the database, seeds it and wires the HTTP surface. Nothing listens until Run.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: cfg,
		logger: logger,
		ready:  make(chan struct{}),
	}

	st, err := store.Open(ctx, cfg.Database.Path, logger.With("component", "store"))
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	s.store = st

	if err := s.seed(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	sessions, err := s.sessions()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
	}

	s.hub = realtime.NewHub(logger, s.metrics)

	var notifier board.Notifier = s.hub
	if cfg.Realtime.RedisURL != "" {
		relay, err := realtime.NewRelay(ctx, s.hub, cfg.Realtime.RedisURL, cfg.Realtime.Channel, logger)
		if err != nil {
			s.hub.Close()
			_ = st.Close()
			return nil, fmt.Errorf("connecting relay: %w", err)
		}
		s.relay = relay
		notifier = relay
		logger.Info("cross-process relay enabled")
	}

	s.limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window, ratelimit.DefaultMaxClients)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	s.api = api.New(api.Options{
		Board:    board.New(st, notifier, logger, board.WithMetrics(s.metrics)),
		Auth:     auth.NewAuthenticator(st, sessions, logger),
		Sessions: sessions,
		DB:       st,
		Realtime: realtime.NewHandler(s.hub, sessions, realtime.HandlerOptions{
			PingInterval:   cfg.Realtime.PingInterval,
			OriginPatterns: originPatterns(cfg.Server.AllowedOrigins),
			Metrics:        s.metrics,
			Logger:         logger,
		}),
		Limiter:        s.limiter,
		Metrics:        s.metrics,
		MetricsPath:    metricsPath,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustProxy:     cfg.Server.TrustProxy,
		Location:       cfg.Location(),
		Logger:         logger,
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// seed creates the first admin and default settings on a fresh database.
func (s *Server) seed(ctx context.Context) error {
	admins, err := s.store.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("counting admins: %w", err)
	}

	opts := store.SeedOptions{
		AdminName: s.config.Auth.AdminName,
		SkipDemo:  s.config.Board.SkipDemo,
	}
	// Hash only when Seed will create the admin.
	if admins == 0 {
		if opts.AdminPINHash, err = auth.HashPIN(s.config.Auth.AdminPIN); err != nil {
			return fmt.Errorf("hashing admin PIN: %w", err)
		}
	}

	res, err := s.store.Seed(ctx, opts)
	if err != nil {
		return fmt.Errorf("seeding database: %w", err)
	}
	if res.AdminCreated && s.config.Auth.AdminPIN == config.Default().Auth.AdminPIN {
		s.logger.Warn("default admin created with the default PIN; change it", "name", opts.AdminName)
	}
	return nil
}

// sessions builds the token signer, generating an ephemeral secret when none is configured.
func (s *Server) sessions() (*auth.Sessions, error) {
	secret := []byte(s.config.Auth.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generating session secret: %w", err)
		}
		s.logger.Warn("no jwt_secret configured; using a random secret, sessions will not survive a restart")
	}
	sessions, err := auth.NewSessions(secret, s.config.Auth.SessionExpiry)
	if err != nil {
		return nil, fmt.Errorf("creating session signer: %w", err)
	}
	return sessions, nil
}

// originPatterns converts allowed origin URLs into the host patterns the
// websocket handshake checks against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.api
}

// Store returns the server's store.
func (s *Server) Store() *store.SQLiteStore {
	return s.store
}

// Addr returns the bound listener address once Run has started listening.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// startServers starts the HTTP server and relay in goroutines, returning the error channel.
func (s *Server) startServers(ctx context.Context, ln net.Listener) chan error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	if s.relay != nil {
		go func() {
			if err := s.relay.Run(ctx); err != nil {
				// Publishes may still succeed, but this process no longer
				// receives invalidations, its own included.
				s.logger.Error("relay stopped", "error", err)
			}
		}()
	}

	return errCh
}

// Run listens and serves until ctx is cancelled or the server fails, then shuts down.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)
	if err != nil {
		_ = s.closeComponents()
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := s.startServers(ctx, ln)

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the run context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting requests, disconnects realtime clients and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	if err := s.closeComponents(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) closeComponents() error {
	var errs []error
	s.hub.Close()
	if s.relay != nil {
		errs = appendCloseError(errs, "relay close", s.relay.Close())
	}
	s.limiter.Close()
	errs = appendCloseError(errs, "store close", s.store.Close())
	return errors.Join(errs...)
}
