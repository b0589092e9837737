package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scrapeworks/mediascraper/internal/progress"
)

// PrometheusSink exports scrape progress metrics. It owns the collectors for
// batch outcomes and per-job progress.
type PrometheusSink struct {
	batchesTotal prometheus.Counter
	batchResults prometheus.Counter
	batchErrors  prometheus.Counter
	jobProgress  *prometheus.GaugeVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_batches_total",
			Help: "Total batches that completed processing.",
		}),
		batchResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_batch_results_total",
			Help: "Total per-batch successful results reported.",
		}),
		batchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_batch_errors_total",
			Help: "Total per-batch isolated URL errors reported.",
		}),
		jobProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scraper_job_progress",
			Help: "Latest reported progress per job (0-100).",
		}, []string{"job_id"}),
	}
	for _, collector := range []prometheus.Collector{
		s.batchesTotal,
		s.batchResults,
		s.batchErrors,
		s.jobProgress,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// HandleEvents updates the collectors. Completed jobs are removed from the
// progress gauge to bound label cardinality.
func (s *PrometheusSink) HandleEvents(_ context.Context, events []progress.Event) error {
	for _, evt := range events {
		s.batchesTotal.Inc()
		s.batchResults.Add(float64(evt.BatchResults))
		s.batchErrors.Add(float64(evt.BatchErrors))
		if evt.Progress >= 100 {
			s.jobProgress.DeleteLabelValues(evt.JobID)
		} else {
			s.jobProgress.WithLabelValues(evt.JobID).Set(float64(evt.Progress))
		}
	}
	return nil
}
