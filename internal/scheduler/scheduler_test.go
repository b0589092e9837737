package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scrapeworks/mediascraper/internal/media"
	"github.com/scrapeworks/mediascraper/internal/progress"
	memoryqueue "github.com/scrapeworks/mediascraper/internal/queue/memory"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fakeIDGen struct {
	mu  sync.Mutex
	n   int
	err error
}

func (g *fakeIDGen) NewID() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("job-%d", g.n), nil
}

type fakeProcessor struct {
	mu      sync.Mutex
	batches [][]string
	process func(ctx context.Context, urls []string) media.BatchResult
}

func (p *fakeProcessor) Process(ctx context.Context, urls []string) media.BatchResult {
	p.mu.Lock()
	p.batches = append(p.batches, append([]string(nil), urls...))
	p.mu.Unlock()
	if p.process != nil {
		return p.process(ctx, urls)
	}
	out := media.BatchResult{}
	for _, u := range urls {
		out.Results = append(out.Results, media.Item{SourceURL: u, MediaURL: u + "/a.jpg", MediaType: media.TypeImage})
	}
	return out
}

func (p *fakeProcessor) seen() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]string(nil), p.batches...)
}

type completionRecorder struct {
	mu        sync.Mutex
	completed []media.Job
	failed    []media.Job
}

func (r *completionRecorder) JobCompleted(_ context.Context, job media.Job, _ []media.Item, _ []media.ScrapeError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, job)
}

func (r *completionRecorder) JobFailed(_ context.Context, job media.Job, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, job)
}

func (r *completionRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completed), len(r.failed)
}

func newTestScheduler(cfg Config, proc BatchProcessor, hub *progress.Hub, completions CompletionHandler) (*Scheduler, *memoryqueue.Queue) {
	q := memoryqueue.NewQueue(16)
	s := New(cfg, q, proc, hub, &fakeClock{now: time.Unix(1700000000, 0).UTC()}, &fakeIDGen{}, completions, nil)
	return s, q
}

func TestSplitBatches(t *testing.T) {
	t.Parallel()

	urls := []string{"a", "b", "c", "d", "e"}
	batches := SplitBatches(urls, 2)
	require.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, batches)

	var flat []string
	for _, b := range batches {
		flat = append(flat, b...)
	}
	require.Equal(t, urls, flat)

	require.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, SplitBatches(urls, 10))
	require.Empty(t, SplitBatches(nil, 3))
}

func TestSubmit_RejectsEmptyInput(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(Config{}, &fakeProcessor{}, nil, nil)
	_, err := s.Submit(context.Background(), []string{"", "   ", "https://"})
	require.ErrorIs(t, err, media.ErrInvalidInput)
}

func TestSubmit_DeduplicatesURLs(t *testing.T) {
	t.Parallel()

	s, q := newTestScheduler(Config{}, &fakeProcessor{}, nil, nil)
	handle, err := s.Submit(context.Background(), []string{
		"https://a.example.com",
		"https://a.example.com",
		"b.example.com",
	})
	require.NoError(t, err)
	require.Equal(t, 2, handle.Total)

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, handle.JobID, job.ID)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, job.URLs)
	require.Equal(t, 1, job.Attempt)
}

func TestScheduler_DeliversOutcomeOnce(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &fakeProcessor{}
	completions := &completionRecorder{}
	s, _ := newTestScheduler(Config{BatchSize: 2, Concurrency: 1, JobTimeout: 5 * time.Second, BatchPause: time.Millisecond}, proc, nil, completions)
	go s.Run(ctx)

	handle, err := s.Submit(ctx, []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"})
	require.NoError(t, err)

	select {
	case outcome := <-handle.Done():
		require.False(t, outcome.Failed())
		require.Equal(t, handle.JobID, outcome.JobID)
		require.Len(t, outcome.Results, 3)
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome delivered")
	}

	require.Eventually(t, func() bool {
		done, failed := completions.counts()
		return done == 1 && failed == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, [][]string{
		{"https://a.example.com", "https://b.example.com"},
		{"https://c.example.com"},
	}, proc.seen())
}

func TestScheduler_EmitsMonotonicProgress(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu     sync.Mutex
		events []progress.Event
	)
	hub := progress.NewHub(progress.Config{MaxBatchWait: 10 * time.Millisecond}, progress.SinkFunc(func(_ context.Context, batch []progress.Event) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, batch...)
		return nil
	}))
	defer func() { _ = hub.Close(context.Background()) }()

	s, _ := newTestScheduler(Config{BatchSize: 1, Concurrency: 1, JobTimeout: 5 * time.Second}, &fakeProcessor{}, hub, nil)
	go s.Run(ctx)

	handle, err := s.Submit(ctx, []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"})
	require.NoError(t, err)
	<-handle.Done()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	last := -1
	for _, e := range events {
		require.NoError(t, e.Validate())
		require.GreaterOrEqual(t, e.Progress, last)
		last = e.Progress
	}
	require.Equal(t, []int{33, 66, 100}, []int{events[0].Progress, events[1].Progress, events[2].Progress})
}

func TestScheduler_RetriesThenFails(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The processor never returns before the job deadline, so every attempt
	// times out.
	proc := &fakeProcessor{process: func(ctx context.Context, _ []string) media.BatchResult {
		<-ctx.Done()
		return media.BatchResult{}
	}}
	completions := &completionRecorder{}
	s, _ := newTestScheduler(Config{
		BatchSize:   50,
		Concurrency: 1,
		MaxAttempts: 2,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
		JobTimeout:  30 * time.Millisecond,
	}, proc, nil, completions)
	go s.Run(ctx)

	handle, err := s.Submit(ctx, []string{"https://stuck.example.com"})
	require.NoError(t, err)

	select {
	case outcome := <-handle.Done():
		require.True(t, outcome.Failed())
	case <-time.After(5 * time.Second):
		t.Fatal("no outcome delivered")
	}

	done, failed := completions.counts()
	require.Equal(t, 0, done)
	require.Equal(t, 1, failed)
	require.GreaterOrEqual(t, len(proc.seen()), 2)
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	b := NewExponentialBackoff(2*time.Second, time.Minute)
	for attempt := 1; attempt <= 10; attempt++ {
		d := b.Delay(attempt)
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, time.Minute)
	}

	// Attempt 1 draws from [base/2, base).
	d := b.Delay(1)
	require.GreaterOrEqual(t, d, time.Second)
	require.Less(t, d, 2*time.Second)
}
