package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"db_schema_filesync/internal/config"
	"db_schema_filesync/internal/db"
	"db_schema_filesync/internal/repo"
	"db_schema_filesync/internal/syncer"
)

// Server is a read-only JSON inspector: it reports the live table list and
// the push plan that would run, and never executes anything.
type Server struct {
	cfg    config.Config
	opts   syncer.PushOptions
	logger requestLogger
}

type requestLogger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

func New(cfg config.Config, opts syncer.PushOptions, logger requestLogger) *Server {
	return &Server{cfg: cfg, opts: opts, logger: logger}
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("inspector listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLog(s.logger))
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/tables", s.handleTables)
	r.Get("/api/plan", s.handlePlan)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	client, err := db.Open(s.cfg.DSN)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer client.Close()

	tables, err := client.ListTables(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	client, err := db.Open(s.cfg.DSN)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer client.Close()

	q, err := syncer.BuildPlan(ctx, client, repo.Repo{Base: s.cfg.BaseDir}, s.opts, s.logger)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type actionDTO struct {
		Kind        string `json:"kind"`
		Description string `json:"description"`
		SQL         string `json:"sql"`
	}
	pending := q.Pending()
	out := make([]actionDTO, 0, len(pending))
	for _, a := range pending {
		out = append(out, actionDTO{Kind: string(a.Kind), Description: a.Description, SQL: a.SQL})
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": out, "count": len(out)})
}

func requestLog(logger requestLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
