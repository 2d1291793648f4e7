// ABOUTME: REST surface of the operations board built on a chi router
// ABOUTME: Wires middleware, session guards and the realtime and metrics endpoints

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/2389/opsboard/internal/auth"
	"github.com/2389/opsboard/internal/board"
	"github.com/2389/opsboard/internal/metrics"
	"github.com/2389/opsboard/internal/ratelimit"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 10 << 10

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds the collaborators of the API. Board, Auth and Sessions are required.
type Options struct {
	Board    *board.Service
	Auth     *auth.Authenticator
	Sessions auth.SessionValidator

	// DB is pinged by /health when set.
	DB Pinger
	// Realtime is mounted at /ws when set.
	Realtime http.Handler
	// Limiter guards /api when set.
	Limiter *ratelimit.Limiter

	Metrics     *metrics.Metrics
	MetricsPath string // empty disables the endpoint

	AllowedOrigins []string
	// TrustProxy rewrites RemoteAddr from forwarding headers before rate limiting.
	TrustProxy bool
	Location       *time.Location
	Logger         *slog.Logger
	Now            func() time.Time
}

// API serves the board over HTTP.
type API struct {
	board    *board.Service
	auth     *auth.Authenticator
	sessions auth.SessionValidator
	db       Pinger
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time

	handler http.Handler
}

// New builds the API and its route table.
func New(opts Options) *API {
	a := &API{
		board:    opts.Board,
		auth:     opts.Auth,
		sessions: opts.Sessions,
		db:       opts.DB,
		limiter:  opts.Limiter,
		metrics:  opts.Metrics,
		location: opts.Location,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "api")
	if a.location == nil {
		a.location = time.UTC
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.handler = a.routes(opts)
	return a
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *API) routes(opts Options) http.Handler {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RequestID)
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(
		a.accessLog,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition", "Retry-After"},
			MaxAge:         300,
		}),
	)

	r.Get("/health", a.handleHealth)

	if opts.Realtime != nil {
		r.Handle("/ws", opts.Realtime)
	}
	if opts.MetricsPath != "" && a.metrics != nil {
		r.Handle(opts.MetricsPath, a.metrics.Handler())
	}

	requireSession := auth.RequireSession(a.sessions)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Compress(5))
		if a.limiter != nil {
			r.Use(a.limiter.Middleware(a.metrics))
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", a.handleLogin)
			r.With(requireSession).Get("/verify", a.handleVerify)
			r.Group(func(r chi.Router) {
				r.Use(requireSession, auth.RequireAdmin())
				r.Post("/users", a.handleCreateUser)
				r.Get("/users", a.handleListUsers)
			})
		})

		r.Get("/board", a.handleBoard)
		r.Get("/stats", a.handleStats)
		r.Get("/export", a.handleExport)

		r.Get("/stock/{category}", a.handleListStock)
		r.Get("/maintenance", a.handleListMaintenance)
		r.Get("/notes", a.handleListNotes)
		r.Get("/shift-log", a.handleListShiftLog)
		r.Get("/settings", a.handleSettings)

		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Post("/stock", a.handleAddStock)
			r.Delete("/stock/{id}", a.handleResolveStock)
			r.Post("/maintenance", a.handleAddMaintenance)
			r.Delete("/maintenance/{id}", a.handleResolveMaintenance)
			r.Post("/notes", a.handleAddNote)
			r.Delete("/notes/{id}", a.handleResolveNote)
			r.Post("/shift-log", a.handleAddShiftEntry)
			r.Delete("/shift-log/{id}", a.handleDeleteShiftEntry)
			r.Put("/settings/{key}", a.handleSetSetting)
			r.Get("/activity", a.handleActivity)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			sendJSONError(w, http.StatusNotFound, "Not found")
		})
	})

	return r
}
