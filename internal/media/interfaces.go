package media

import (
	"context"
	"time"
)

// Store persists media rows and source URL lifecycle state.
type Store interface {
	// UpsertPending creates (or resets) the lifecycle row for each source URL
	// with StatusPending. Resubmitting a terminal URL restarts its lifecycle.
	UpsertPending(ctx context.Context, sourceURLs []string) error

	// InsertMedia bulk-writes discovered assets, upserting on the natural key
	// (source URL, media URL) so redelivered results never duplicate rows.
	InsertMedia(ctx context.Context, items []Item) error

	// UpdateStatus moves every listed source URL from one status to another.
	// The from predicate is what keeps pending→terminal transitions one-way.
	UpdateStatus(ctx context.Context, sourceURLs []string, from, to Status) error

	// Statuses returns the current lifecycle status per source URL.
	Statuses(ctx context.Context, sourceURLs []string) (map[string]Status, error)

	// List returns a paginated, filtered view of media rows.
	List(ctx context.Context, q Query) (Page, error)

	// Clear removes every media row.
	Clear(ctx context.Context) error

	// RunInTx executes fn against a transactional view of the store,
	// committing on nil and rolling back on error. Implementations without
	// real transactions may run fn directly.
	RunInTx(ctx context.Context, fn func(Store) error) error
}

// Queue provides enqueue/dequeue semantics for scrape jobs. Dequeued jobs are
// leased: Ack releases the lease once the job reaches a terminal outcome, and
// unacked jobs may be redelivered (at-least-once).
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
	Ack(ctx context.Context, job Job) error
}

// Publisher pushes advisory events to an external channel (Redis pub/sub,
// GCP Pub/Sub, or similar). Consumers must not rely on receiving every event.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
