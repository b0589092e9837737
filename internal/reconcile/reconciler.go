// Package reconcile maps a job's terminal payload back onto per-URL durable
// status. It is the only writer that moves a source URL out of pending, and
// it is deliberately lenient: ambiguous outcomes resolve to processed rather
// than failed so that no URL is ever stuck pending after its job ends.
package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/scrapeworks/mediascraper/internal/media"
)

// Reconciler updates the media store from job outcomes. It implements
// scheduler.CompletionHandler.
type Reconciler struct {
	store  media.Store
	logger *zap.Logger
}

// New builds a Reconciler.
func New(store media.Store, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, logger: logger}
}

// JobCompleted applies a completed job's results and errors. Media rows for
// each source URL are inserted in the same transaction that marks the source
// processed. A source URL that appears in both results and errors resolves to
// processed: partial success wins over partial error. URLs the pipeline lost
// track of entirely are swept to processed rather than left pending.
//
// If the transaction fails, a best-effort non-transactional sweep still
// resolves every originally-pending URL to a terminal state.
func (r *Reconciler) JobCompleted(ctx context.Context, job media.Job, results []media.Item, errs []media.ScrapeError) {
	err := r.store.RunInTx(ctx, func(s media.Store) error {
		return r.applyOutcome(ctx, s, job, results, errs)
	})
	if err == nil {
		return
	}
	r.logger.Error("reconciliation transaction failed, falling back to lenient sweep",
		zap.String("job_id", job.ID), zap.Error(err))
	if err := r.store.UpdateStatus(ctx, job.URLs, media.StatusPending, media.StatusProcessed); err != nil {
		r.logger.Error("fallback status sweep failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (r *Reconciler) applyOutcome(ctx context.Context, s media.Store, job media.Job, results []media.Item, errs []media.ScrapeError) error {
	bySource := groupBySource(results)

	for sourceURL, items := range bySource {
		withMedia := items[:0:0]
		for _, it := range items {
			if !it.Empty() {
				withMedia = append(withMedia, it)
			}
		}
		if len(withMedia) > 0 {
			if err := s.InsertMedia(ctx, withMedia); err != nil {
				return err
			}
		}
		// Zero-media groups still count as processed; fetched-but-empty is
		// success, not failure.
		if err := s.UpdateStatus(ctx, []string{sourceURL}, media.StatusPending, media.StatusProcessed); err != nil {
			return err
		}
	}

	for _, scrapeErr := range errs {
		to := media.StatusFailed
		if _, alsoSucceeded := bySource[scrapeErr.SourceURL]; alsoSucceeded {
			to = media.StatusProcessed
		}
		if err := s.UpdateStatus(ctx, []string{scrapeErr.SourceURL}, media.StatusPending, to); err != nil {
			return err
		}
	}

	// Anything from the submitted set that surfaced in neither list was
	// dropped somewhere in the pipeline; resolve it rather than leaving it
	// pending forever.
	return s.UpdateStatus(ctx, job.URLs, media.StatusPending, media.StatusProcessed)
}

// JobFailed handles exhaustion of job-level retries. URLs that already
// reached a terminal status during a partial run keep it; the remainder are
// marked processed, not failed; an inconclusive outcome is not surfaced as a
// hard failure.
func (r *Reconciler) JobFailed(ctx context.Context, job media.Job, jobErr error) {
	r.logger.Warn("job failed, resolving remaining urls leniently",
		zap.String("job_id", job.ID), zap.Error(jobErr))

	remaining := job.URLs
	statuses, err := r.store.Statuses(ctx, job.URLs)
	if err != nil {
		r.logger.Error("status lookup failed, sweeping all submitted urls",
			zap.String("job_id", job.ID), zap.Error(err))
	} else {
		remaining = remaining[:0:0]
		for _, u := range job.URLs {
			if st, ok := statuses[u]; !ok || st == media.StatusPending {
				remaining = append(remaining, u)
			}
		}
	}
	if len(remaining) == 0 {
		return
	}
	if err := r.store.UpdateStatus(ctx, remaining, media.StatusPending, media.StatusProcessed); err != nil {
		r.logger.Error("lenient status sweep failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func groupBySource(results []media.Item) map[string][]media.Item {
	grouped := make(map[string][]media.Item, len(results))
	for _, it := range results {
		grouped[it.SourceURL] = append(grouped[it.SourceURL], it)
	}
	return grouped
}
