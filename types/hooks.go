package types

import "context"

// Hooks defines callbacks for Controller lifecycle events.
//
// All hooks are optional and called asynchronously in background goroutines
// so they never block a worker or the producer. Hook errors are logged and
// otherwise ignored.
//
// Example:
//
//	hooks := &fanout.Hooks{
//	    OnItemFailed: func(ctx context.Context, p fanout.Partition, item fanout.WorkItem, err error) error {
//	        return deadLetters.Put(ctx, item, err)
//	    },
//	}
type Hooks struct {
	// OnStateChanged is called when the controller transitions state.
	OnStateChanged func(ctx context.Context, from, to State) error

	// OnRoundCompleted is called after each round with its number and fetched item count.
	OnRoundCompleted func(ctx context.Context, round int64, fetched int) error

	// OnItemFailed is called when an item is dropped after its single attempt.
	// This is the extension point for dead-lettering.
	OnItemFailed func(ctx context.Context, partition Partition, item WorkItem, err error) error

	// OnError is called when a recoverable error occurs (fetch failure, partition create failure).
	OnError func(ctx context.Context, err error) error
}
