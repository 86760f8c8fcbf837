package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/marcus/worklog/internal/models"
	"github.com/marcus/worklog/internal/serverdb"
	"github.com/marcus/worklog/internal/webhook"
)

// Server is the HTTP API server for worklogd.
type Server struct {
	config      Config
	http        *http.Server
	store       *serverdb.ServerDB
	metrics     *Metrics
	rateLimiter *RateLimiter
	notifier    *webhook.Notifier
	cancel      context.CancelFunc
	addr        net.Addr
}

// NewServer creates a new Server with the given config and store.
func NewServer(cfg Config, store *serverdb.ServerDB) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	s := &Server{
		config:      cfg,
		store:       store,
		metrics:     NewMetrics(),
		rateLimiter: NewRateLimiter(),
	}
	if cfg.WebhookURL != "" {
		s.notifier = webhook.NewNotifier(cfg.WebhookURL, cfg.WebhookSecret)
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.addr = ln.Addr()

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	// Periodically prune expired keys and old audit rows
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("cleanup panic", "panic", r)
			}
		}()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()

	return nil
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() net.Addr {
	return s.addr
}

func (s *Server) cleanup() {
	if n, err := s.store.CleanupExpiredAPIKeys(); err != nil {
		slog.Error("cleanup expired api keys", "err", err)
	} else if n > 0 {
		slog.Info("cleaned up expired api keys", "count", n)
	}
	if _, err := s.store.CleanupAuthEvents(s.config.AuthEventRetention); err != nil {
		slog.Error("cleanup auth events", "err", err)
	}
	if _, err := s.store.CleanupRateLimitEvents(s.config.RateLimitEventRetention); err != nil {
		slog.Error("cleanup rate limit events", "err", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	err := s.http.Shutdown(ctx)
	s.rateLimiter.Close()
	if s.notifier != nil {
		s.notifier.Close()
	}
	return err
}

// notify forwards a committed change to the webhook, if one is configured.
func (s *Server) notify(coll string, ev models.ChangeEvent) {
	if s.notifier != nil {
		s.notifier.Notify(coll, ev)
	}
}

// Handler returns the fully wrapped HTTP handler, for embedding in tests
// or another server.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health & metrics
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metricz", s.handleMetrics)

	// Auth (public)
	mux.HandleFunc("POST /v1/auth/signup", s.withIPLimit(s.handleSignUp))
	mux.HandleFunc("POST /v1/auth/signin", s.withIPLimit(s.handleSignIn))

	// Auth (session)
	mux.HandleFunc("POST /v1/auth/signout", s.requireAuth(s.handleSignOut))
	mux.HandleFunc("GET /v1/auth/session", s.requireAuth(s.withRateLimit(s.handleSession, tierOther)))
	mux.HandleFunc("PUT /v1/profile", s.requireAuth(s.withRateLimit(s.handleSaveProfile, tierOther)))

	// Collections
	mux.HandleFunc("GET /v1/collections/{name}/snapshot", s.requireCollection(s.withRateLimit(s.handleSnapshot, tierFeed)))
	mux.HandleFunc("GET /v1/collections/{name}/changes", s.requireCollection(s.withRateLimit(s.handleChanges, tierFeed)))
	mux.HandleFunc("POST /v1/collections/{name}/records", s.requireCollection(s.withRateLimit(s.handleAddRecord, tierWrite)))
	mux.HandleFunc("PATCH /v1/collections/{name}/records/{id}", s.requireCollection(s.withRateLimit(s.handleUpdateRecord, tierWrite)))
	mux.HandleFunc("DELETE /v1/collections/{name}/records/{id}", s.requireCollection(s.withRateLimit(s.handleDeleteRecord, tierWrite)))

	return chain(mux,
		recoveryMiddleware,
		requestIDMiddleware,
		loggerMiddleware,
		metricsMiddleware(s.metrics),
		loggingMiddleware,
		s.CORSMiddleware,
		maxBytesMiddleware(1<<20),
	)
}

// handleHealth returns a health check response, pinging the server DB.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics returns a snapshot of server metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
