// Package http exposes the service's HTTP surface: operational endpoints and
// the minimal ingestion/query boundary consumed by the presentation layer.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/health-data-etl-service/internal/domain"
	"github.com/couchcryptid/health-data-etl-service/internal/pipeline"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// IngestRunner triggers a full ingestion run.
type IngestRunner interface {
	Run(ctx context.Context, indicators []string) (pipeline.Summary, error)
}

// FactReader serves the joined facts-by-year query.
type FactReader interface {
	FetchFactsByYear(ctx context.Context, year int) ([]domain.FactRow, error)
}

// Server exposes health, readiness, metrics, ingestion trigger, and fact
// query routes.
type Server struct {
	httpServer        *http.Server
	runner            IngestRunner
	facts             FactReader
	defaultIndicators []string
	logger            *slog.Logger
}

// NewServer creates the HTTP server. defaultIndicators is used when an
// ingest request does not name its own indicator codes.
func NewServer(addr string, ready ReadinessChecker, runner IngestRunner, facts FactReader, defaultIndicators []string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		runner:            runner,
		facts:             facts,
		defaultIndicators: defaultIndicators,
		logger:            logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("GET /facts", s.handleFacts)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// ingestRequest optionally overrides the indicator codes for one run.
type ingestRequest struct {
	Indicators []string `json:"indicators"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	indicators := s.defaultIndicators

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Indicators) > 0 {
		indicators = req.Indicators
	}

	summary, err := s.runner.Run(r.Context(), indicators)
	if err != nil {
		s.logger.Error("ingestion run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ingestion failed"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "year query parameter must be an integer"})
		return
	}

	rows, err := s.facts.FetchFactsByYear(r.Context(), year)
	if err != nil {
		s.logger.Error("fetch facts failed", "year", year, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	if rows == nil {
		rows = []domain.FactRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
