package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/KingSajxxd/f1-relay/internal/metrics"
)

// maxRequestBodyBytes bounds request bodies on every route. Every endpoint
// here is a pull endpoint (/snapshot, /ws, /healthz) with no legitimate
// body of its own, so this only guards against a misbehaving client.
const maxRequestBodyBytes = 1 << 20 // 1MiB

// SnapshotStore is the subset of store.Store the pull endpoint needs.
type SnapshotStore interface {
	StoreSnapshotter
	SnapshotSource
}

// SubscriberBus is the subset of egress.Bus the API layer needs.
type SubscriberBus interface {
	SnapshotBus
	SubscriberCounter
}

// ServerOptions configures the collaborator HTTP layer: a thin adapter
// exposing the core's store reader and subscriber registry. The core
// itself exposes no HTTP API — only the store reader and the subscriber
// registry — so this Server is the request/response and streaming
// collaborator sitting in front of them. A zero RateLimitRPS disables
// per-IP rate limiting, and a zero WriteTimeout leaves /snapshot unbounded.
type ServerOptions struct {
	HTTPAddr       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	CORSOrigins    string
	RateLimitRPS   float64
	RateLimitBurst int
	AuthEnabled    bool
	AuthToken      string
	MetricsEnabled bool

	Mode      string
	StartTime time.Time
	Conn      ConnectionStatus // nil in replay mode

	Store SnapshotStore
	Bus   SubscriberBus
	Log   zerolog.Logger
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	r := chi.NewRouter()

	var corsOrigins []string
	if opts.CORSOrigins != "" {
		for _, o := range strings.Split(opts.CORSOrigins, ",") {
			if s := strings.TrimSpace(o); s != "" {
				corsOrigins = append(corsOrigins, s)
			}
		}
	}

	r.Use(RequestID)
	r.Use(CORSWithOrigins(corsOrigins))
	r.Use(MaxBodySize(maxRequestBodyBytes))
	if opts.RateLimitRPS > 0 {
		r.Use(RateLimiter(opts.RateLimitRPS, opts.RateLimitBurst))
	}
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	if opts.MetricsEnabled {
		r.Use(metrics.InstrumentHandler)
	}

	health := NewHealthHandler(opts.Mode, opts.StartTime, opts.Conn, opts.Store, opts.Bus)
	r.Get("/healthz", health.ServeHTTP)

	if opts.MetricsEnabled {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
	}

	ws := NewWSHandler(opts.Bus, opts.Store, opts.Log)

	// RequireAuth rejects outright when auth is on but no token exists;
	// BearerAuth then validates the token the request actually presented.
	authMiddleware := func(next http.Handler) http.Handler {
		if opts.AuthEnabled {
			return RequireAuth(opts.AuthToken)(BearerAuth(opts.AuthToken)(next))
		}
		return next
	}

	// /snapshot is a short-lived request/response pull — bound it with
	// the configured write timeout. /ws is long-lived and must not be
	// wrapped by a response deadline — the subscriber protocol keeps the
	// connection open indefinitely.
	snapshotMiddleware := []func(http.Handler) http.Handler{authMiddleware}
	if opts.WriteTimeout > 0 {
		snapshotMiddleware = append(snapshotMiddleware, ResponseTimeout(opts.WriteTimeout))
	}
	r.With(snapshotMiddleware...).Get("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, opts.Store.Snapshot())
	})
	r.With(authMiddleware).Get("/ws", ws.ServeHTTP)

	srv := &http.Server{
		Addr:         opts.HTTPAddr,
		Handler:      r,
		ReadTimeout:  opts.ReadTimeout,
		IdleTimeout:  opts.IdleTimeout,
		WriteTimeout: 0, // the /ws endpoint is long-lived
	}

	return &Server{http: srv, log: opts.Log}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
