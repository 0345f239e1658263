package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/sift/internal/examples"
	"github.com/MikeSquared-Agency/sift/internal/report"
	"github.com/MikeSquared-Agency/sift/internal/store"
	"github.com/MikeSquared-Agency/sift/internal/taxonomy"
)

// ReportStore is the persistence the API reads and writes. It is satisfied
// by *store.Store.
type ReportStore interface {
	WriteReport(ctx context.Context, r *report.Report) error
	GetRun(ctx context.Context, id uuid.UUID) (*store.RunRow, error)
	RecentRuns(ctx context.Context, limit int) ([]store.RunRow, error)
}

// Deps are the components behind the handlers. Store may be nil.
type Deps struct {
	Registry    *taxonomy.Registry
	Builder     *report.Builder
	Selector    *examples.Selector
	Store       ReportStore
	LLMProvider string
	Logger      *slog.Logger
}

type Server struct {
	router   *chi.Mux
	port     int
	deps     Deps
	started  time.Time
	maxBytes int64
}

func NewServer(port int, apiToken string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		deps:     deps,
		started:  time.Now(),
		maxBytes: 32 << 20,
	}

	router.Get("/health", s.health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Get("/sift/status", s.status)
		r.Post("/classify", s.classify)
		r.Post("/filter/{kind}", s.filter)
		r.Post("/examples", s.examples)
		r.Post("/report", s.report)
		r.Get("/reports", s.listReports)
		r.Get("/reports/{id}", s.getReport)
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.deps.Logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"agent":        "sift",
		"status":       "ok",
		"llm_provider": s.deps.LLMProvider,
		"persistence":  s.deps.Store != nil,
		"uptime_s":     int(time.Since(s.started).Seconds()),
	}
	if s.deps.Registry != nil {
		body["taxonomy_version"] = s.deps.Registry.Version()
		body["categories"] = len(s.deps.Registry.Categories())
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"error": fmt.Sprintf(format, args...)})
}
