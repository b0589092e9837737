// Package scheduler owns the job lifecycle: it accepts URL submissions,
// splits them into batches, drives the batch processor through the queue
// under a concurrency limit, retries whole jobs on infrastructure failure,
// and delivers one terminal outcome per job.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scrapeworks/mediascraper/internal/media"
	"github.com/scrapeworks/mediascraper/internal/metrics"
	"github.com/scrapeworks/mediascraper/internal/progress"
)

// BatchProcessor processes one bounded batch of URLs.
type BatchProcessor interface {
	Process(ctx context.Context, urls []string) media.BatchResult
}

// CompletionHandler receives each job's terminal outcome. JobCompleted and
// JobFailed are mutually exclusive and invoked at most once per job run.
type CompletionHandler interface {
	JobCompleted(ctx context.Context, job media.Job, results []media.Item, errs []media.ScrapeError)
	JobFailed(ctx context.Context, job media.Job, err error)
}

// Config controls scheduler behavior.
type Config struct {
	BatchSize   int           // URLs per batch (default 50)
	Concurrency int           // jobs processed simultaneously per worker (default 2)
	MaxAttempts int           // whole-job attempts before giving up (default 5)
	BackoffBase time.Duration // first retry delay (default 2s)
	BackoffMax  time.Duration // retry delay ceiling
	JobTimeout  time.Duration // absolute per-job deadline (default 240s)
	BatchPause  time.Duration // pause between batches within a job (default 100ms)
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = time.Minute
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 240 * time.Second
	}
	if c.BatchPause < 0 {
		c.BatchPause = 0
	}
	return c
}

// Handle tracks one submitted job. The Done channel delivers the terminal
// JobOutcome at most once.
type Handle struct {
	JobID string
	Total int
	done  chan media.JobOutcome
}

// Done returns a channel that receives the job's terminal outcome.
func (h *Handle) Done() <-chan media.JobOutcome { return h.done }

// Scheduler implements job submission and the worker pull loop.
type Scheduler struct {
	cfg         Config
	queue       media.Queue
	proc        BatchProcessor
	hub         *progress.Hub
	clock       media.Clock
	idGen       media.IDGenerator
	completions CompletionHandler
	backoff     *ExponentialBackoff
	logger      *zap.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// New constructs a Scheduler. hub and completions may be nil.
func New(
	cfg Config,
	queue media.Queue,
	proc BatchProcessor,
	hub *progress.Hub,
	clock media.Clock,
	idGen media.IDGenerator,
	completions CompletionHandler,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:         cfg,
		queue:       queue,
		proc:        proc,
		hub:         hub,
		clock:       clock,
		idGen:       idGen,
		completions: completions,
		backoff:     NewExponentialBackoff(cfg.BackoffBase, cfg.BackoffMax),
		logger:      logger,
		handles:     make(map[string]*Handle),
	}
}

// Submit deduplicates and normalizes the URL set and enqueues it as one job.
// It returns media.ErrInvalidInput when nothing usable remains after
// filtering; no job is created in that case.
func (s *Scheduler) Submit(ctx context.Context, urls []string) (*Handle, error) {
	clean := media.SanitizeURLs(urls)
	if len(clean) == 0 {
		return nil, media.ErrInvalidInput
	}
	jobID, err := s.idGen.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate job id: %w", err)
	}
	job := media.Job{
		ID:        jobID,
		URLs:      clean,
		Attempt:   1,
		Submitted: s.clock.Now(),
	}
	handle := &Handle{
		JobID: jobID,
		Total: len(clean),
		done:  make(chan media.JobOutcome, 1),
	}
	s.mu.Lock()
	s.handles[jobID] = handle
	s.mu.Unlock()

	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.mu.Lock()
		delete(s.handles, jobID)
		s.mu.Unlock()
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	s.logger.Info("job submitted",
		zap.String("job_id", jobID),
		zap.Int("urls", len(clean)),
	)
	return handle, nil
}

// Run blocks, pulling jobs with Concurrency worker goroutines until the
// context finishes.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.workerLoop(ctx)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) workerLoop(ctx context.Context) {
	for {
		job, err := s.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		s.runJob(ctx, job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job media.Job) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	s.logger.Info("processing job",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Int("urls", len(job.URLs)),
	)
	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	batches := SplitBatches(job.URLs, s.cfg.BatchSize)
	total := len(job.URLs)
	processed := 0
	var agg media.BatchResult

	for i, b := range batches {
		if jobCtx.Err() != nil {
			break
		}
		res := s.proc.Process(jobCtx, b)
		agg.Merge(res)
		processed += len(b)
		s.emitProgress(job, processed, total, res)

		if s.cfg.BatchPause > 0 && i < len(batches)-1 {
			select {
			case <-jobCtx.Done():
			case <-time.After(s.cfg.BatchPause):
			}
		}
	}

	switch {
	case ctx.Err() != nil:
		// Worker is shutting down mid-job. Leave the lease unacked so a
		// durable queue redelivers the job to another worker.
		s.logger.Warn("worker stopped mid-job, leaving job for redelivery",
			zap.String("job_id", job.ID))
	case jobCtx.Err() != nil:
		s.retryOrFail(ctx, job, fmt.Errorf("job timed out after %s: %w", s.cfg.JobTimeout, jobCtx.Err()))
	default:
		s.completeJob(ctx, job, agg)
	}
}

func (s *Scheduler) completeJob(ctx context.Context, job media.Job, agg media.BatchResult) {
	if err := s.queue.Ack(ctx, job); err != nil {
		s.logger.Warn("job ack failed, redelivery possible", zap.String("job_id", job.ID), zap.Error(err))
	}
	s.logger.Info("job completed",
		zap.String("job_id", job.ID),
		zap.Int("results", len(agg.Results)),
		zap.Int("errors", len(agg.Errors)),
	)
	metrics.ObserveJob("completed")
	if s.completions != nil {
		s.completions.JobCompleted(ctx, job, agg.Results, agg.Errors)
	}
	s.deliver(media.JobOutcome{JobID: job.ID, Results: agg.Results, Errors: agg.Errors})
}

// retryOrFail re-enqueues the job with backoff while attempts remain, and
// otherwise reports the terminal failure. Jobs are never silently dropped.
func (s *Scheduler) retryOrFail(ctx context.Context, job media.Job, cause error) {
	if err := s.queue.Ack(ctx, job); err != nil {
		s.logger.Warn("job ack failed during retry", zap.String("job_id", job.ID), zap.Error(err))
	}
	if job.Attempt < s.cfg.MaxAttempts {
		delay := s.backoff.Delay(job.Attempt)
		s.logger.Warn("job attempt failed, retrying",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempt),
			zap.Duration("backoff", delay),
			zap.Error(cause),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		job.Attempt++
		err := s.queue.Enqueue(ctx, job)
		if err == nil {
			metrics.ObserveJob("retried")
			return
		}
		cause = errors.Join(cause, fmt.Errorf("re-enqueue failed: %w", err))
	}
	s.logger.Error("job failed after exhausting attempts",
		zap.String("job_id", job.ID),
		zap.Int("attempts", job.Attempt),
		zap.Error(cause),
	)
	metrics.ObserveJob("failed")
	if s.completions != nil {
		s.completions.JobFailed(ctx, job, cause)
	}
	s.deliver(media.JobOutcome{JobID: job.ID, Err: cause})
}

// deliver hands the terminal outcome to the submission handle, if this
// process owns one. Removing the handle first makes redelivery harmless.
func (s *Scheduler) deliver(outcome media.JobOutcome) {
	s.mu.Lock()
	handle, ok := s.handles[outcome.JobID]
	if ok {
		delete(s.handles, outcome.JobID)
	}
	s.mu.Unlock()
	if ok {
		handle.done <- outcome
	}
}

func (s *Scheduler) emitProgress(job media.Job, processed, total int, res media.BatchResult) {
	if s.hub == nil {
		return
	}
	s.hub.Emit(progress.Event{
		JobID:        job.ID,
		TS:           s.clock.Now(),
		Progress:     processed * 100 / total,
		Processed:    processed,
		Total:        total,
		BatchResults: len(res.Results),
		BatchErrors:  len(res.Errors),
	})
}

// SplitBatches partitions urls into order-preserving chunks of at most size.
// Concatenating the result reproduces the input exactly.
func SplitBatches(urls []string, size int) [][]string {
	if size <= 0 {
		size = 50
	}
	var batches [][]string
	for start := 0; start < len(urls); start += size {
		end := start + size
		if end > len(urls) {
			end = len(urls)
		}
		batches = append(batches, urls[start:end])
	}
	return batches
}
