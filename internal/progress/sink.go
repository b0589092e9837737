package progress

import "context"

// Sink receives batched events from the Hub. Implementations must be safe for
// concurrent use and should return quickly; the Hub applies a per-flush
// timeout.
type Sink interface {
	HandleEvents(ctx context.Context, events []Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, events []Event) error

// HandleEvents calls the wrapped function.
func (f SinkFunc) HandleEvents(ctx context.Context, events []Event) error {
	return f(ctx, events)
}
