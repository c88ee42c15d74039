// Package ops exposes the operational HTTP surface: liveness, database
// health, and a scheduler status page.
package ops

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/militrik/MKRschedule-bot/internal/scheduler"
)

// Pinger checks database connectivity.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// StatusSource reports the scheduler's current state.
type StatusSource interface {
	Snapshot() scheduler.Snapshot
}

// Server is the ops HTTP server.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the router and server. allowOrigins applies to CORS;
// an empty list disables cross-origin access.
func NewServer(addr string, db Pinger, status StatusSource, allowOrigins []string, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if len(allowOrigins) > 0 {
		c := corslib.New(corslib.Options{
			AllowedOrigins: allowOrigins,
			AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		})
		r.Use(c.Handler)
	}

	// --- Routes ---
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
		defer cancel()
		if err := db.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Get("/statusz", func(w http.ResponseWriter, req *http.Request) {
		snap := status.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"entities":  snap.Entities,
			"last_scan": snap.LastScan,
			"now":       time.Now(),
		})
	})

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("ops server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
