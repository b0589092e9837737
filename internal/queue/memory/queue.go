// Package memory provides a queue implementation for local development and
// tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/scrapeworks/mediascraper/internal/media"
)

// Queue is a bounded in-memory queue with context-aware operations. It does
// not survive process restarts and its Ack is a no-op; redelivery guarantees
// come only from the Redis implementation.
type Queue struct {
	ch      chan media.Job
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan media.Job, capacity),
	}
}

// Enqueue pushes a job into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, job media.Job) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- job:
		return nil
	}
}

// Dequeue pops the next job, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (media.Job, error) {
	select {
	case <-ctx.Done():
		return media.Job{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job, ok := <-q.ch:
		if !ok {
			return media.Job{}, errors.New("queue closed")
		}
		return job, nil
	}
}

// Ack is a no-op for the in-memory queue.
func (q *Queue) Ack(_ context.Context, _ media.Job) error { return nil }

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
