// Package api exposes the HTTP interface for the crawler service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/naijahub/newscrawler/internal/metrics"
	"github.com/naijahub/newscrawler/internal/scraper"
)

// Scraper triggers crawl runs. The service layer implements it.
type Scraper interface {
	ScrapeWebsite(ctx context.Context, websiteID int64, force bool) (*scraper.JobSummary, error)
	ScrapeAll(ctx context.Context, force bool) ([]scraper.JobSummary, error)
}

// ErrorReporter aggregates the errors recorded against a job. The jobs
// tracker implements it.
type ErrorReporter interface {
	Summary(ctx context.Context, jobID int64) (*scraper.ErrorSummary, error)
}

// Server wires HTTP handlers to the service and stores.
type Server struct {
	router  chi.Router
	svc     Scraper
	gateway scraper.Gateway
	errors  ErrorReporter
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(svc Scraper, gateway scraper.Gateway, errors ErrorReporter, logger *zap.Logger) *Server {
	s := &Server{
		svc:     svc,
		gateway: gateway,
		errors:  errors,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/websites", s.listWebsites)
		r.Post("/scrape", s.scrapeAll)
		r.Post("/scrape/{website_id}", s.scrapeWebsite)
		r.Get("/jobs/{job_id}/errors", s.jobErrors)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.gateway.ListActiveWebsites(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listWebsites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.gateway.ListActiveWebsites(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list websites")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"websites": sites})
}

func (s *Server) scrapeAll(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.svc.ScrapeAll(r.Context(), forceParam(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": summaries})
}

func (s *Server) scrapeWebsite(w http.ResponseWriter, r *http.Request) {
	websiteID, err := strconv.ParseInt(chi.URLParam(r, "website_id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid website id")
		return
	}
	summary, err := s.svc.ScrapeWebsite(r.Context(), websiteID, forceParam(r))
	if err != nil {
		status := http.StatusInternalServerError
		if scraper.ClassifyError(err) == scraper.ErrorTypeValidation {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) jobErrors(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(chi.URLParam(r, "job_id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	summary, err := s.errors.Summary(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load error summary")
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func forceParam(r *http.Request) bool {
	return r.URL.Query().Get("force") == "true"
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
