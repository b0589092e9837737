// Package sinks contains Sink implementations for the progress Hub.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/scrapeworks/mediascraper/internal/progress"
)

// LogSink writes progress events to the structured log at debug level.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// HandleEvents logs each event.
func (s *LogSink) HandleEvents(_ context.Context, events []progress.Event) error {
	for _, evt := range events {
		s.logger.Debug("job progress",
			zap.String("job_id", evt.JobID),
			zap.Int("progress", evt.Progress),
			zap.Int("processed", evt.Processed),
			zap.Int("total", evt.Total),
			zap.Int("batch_results", evt.BatchResults),
			zap.Int("batch_errors", evt.BatchErrors),
		)
	}
	return nil
}
