// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrapeworks/mediascraper/internal/media"
	"github.com/scrapeworks/mediascraper/internal/metrics"
	"github.com/scrapeworks/mediascraper/internal/scheduler"
)

// Submitter accepts a URL set and returns a job handle.
type Submitter interface {
	Submit(ctx context.Context, urls []string) (*scheduler.Handle, error)
}

// Server wires HTTP handlers to the scheduler and the media store.
type Server struct {
	router    chi.Router
	store     media.Store
	scheduler Submitter
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store media.Store, sched Submitter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		store:     store,
		scheduler: sched,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/media", func(r chi.Router) {
		r.Post("/scrape", s.submitScrape)
		r.Get("/", s.listMedia)
		r.Delete("/clear", s.clearMedia)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// A cheap store query doubles as the downstream readiness probe.
	if _, err := s.store.Statuses(r.Context(), nil); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type scrapeRequest struct {
	URLs []string `json:"urls"`
}

func (s *Server) submitScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	clean := media.SanitizeURLs(req.URLs)
	if len(clean) == 0 {
		s.writeError(w, http.StatusBadRequest, "no valid URLs provided")
		return
	}
	// Pending rows are written before the job is queued so the lifecycle is
	// visible to readers even if the worker has not picked the job up yet.
	if err := s.store.UpsertPending(r.Context(), clean); err != nil {
		s.logger.Error("upsert pending failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to record submission")
		return
	}
	handle, err := s.scheduler.Submit(r.Context(), clean)
	if err != nil {
		if errors.Is(err, media.ErrInvalidInput) {
			s.writeError(w, http.StatusBadRequest, "no valid URLs provided")
			return
		}
		s.logger.Error("job submission failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to start scraping")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"message":   "Scraping started",
		"jobId":     handle.JobID,
		"totalUrls": handle.Total,
	})
}

func (s *Server) listMedia(w http.ResponseWriter, r *http.Request) {
	q := media.Query{
		Page:   intQuery(r, "page", 1),
		Limit:  intQuery(r, "limit", 20),
		Type:   media.Type(r.URL.Query().Get("type")),
		Search: r.URL.Query().Get("search"),
	}
	page, err := s.store.List(r.Context(), q)
	if err != nil {
		s.logger.Error("media listing failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list media")
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) clearMedia(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		s.logger.Error("media clear failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to clear media")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "All media cleared"})
}

func intQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestIDFrom(r.Context())),
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

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
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
