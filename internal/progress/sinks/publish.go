package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/scrapeworks/mediascraper/internal/media"
	"github.com/scrapeworks/mediascraper/internal/progress"
)

// PublishSink forwards events to an external advisory channel (Redis pub/sub
// or GCP Pub/Sub) through the Publisher interface. Publish failures are
// logged and swallowed: consumers must not rely on receiving every event.
type PublishSink struct {
	publisher media.Publisher
	topic     string
	logger    *zap.Logger
}

// NewPublishSink builds a PublishSink for the named channel.
func NewPublishSink(publisher media.Publisher, topic string, logger *zap.Logger) *PublishSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishSink{publisher: publisher, topic: topic, logger: logger}
}

// HandleEvents publishes each event as JSON.
func (s *PublishSink) HandleEvents(ctx context.Context, events []progress.Event) error {
	for _, evt := range events {
		payload := map[string]any{
			"jobId":     evt.JobID,
			"progress":  evt.Progress,
			"processed": evt.Processed,
			"total":     evt.Total,
			"batch": map[string]int{
				"results": evt.BatchResults,
				"errors":  evt.BatchErrors,
			},
		}
		if _, err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
			s.logger.Warn("progress publish failed (non-critical)",
				zap.String("job_id", evt.JobID), zap.Error(err))
		}
	}
	return nil
}
