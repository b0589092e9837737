// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperJobsTotal           *prometheus.CounterVec
	scraperURLsTotal           *prometheus.CounterVec
	scraperMediaFoundTotal     *prometheus.CounterVec
	scraperFetchSeconds        prometheus.Histogram
	scraperActiveWorkers       prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_jobs_total",
				Help: "Total number of scrape jobs reaching a terminal outcome, labeled by status.",
			},
			[]string{"status"},
		)

		scraperURLsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_urls_total",
				Help: "Total number of source URLs processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		scraperMediaFoundTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_media_found_total",
				Help: "Total number of media assets extracted, labeled by type.",
			},
			[]string{"type"},
		)

		scraperFetchSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 45},
			},
		)

		scraperActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_workers",
				Help: "Number of workers currently processing a job.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the job counter for the given terminal status.
func ObserveJob(status string) {
	scraperJobsTotal.WithLabelValues(status).Inc()
}

// ObserveURL increments the per-URL outcome counter.
func ObserveURL(outcome string) {
	scraperURLsTotal.WithLabelValues(outcome).Inc()
}

// ObserveMedia increments the extracted asset counter for the given type.
func ObserveMedia(mediaType string) {
	scraperMediaFoundTotal.WithLabelValues(mediaType).Inc()
}

// ObserveFetch records the duration of one page fetch.
func ObserveFetch(duration time.Duration) {
	scraperFetchSeconds.Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	scraperActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	scraperActiveWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
