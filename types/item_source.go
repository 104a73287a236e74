package types

import "context"

// ItemSource pulls bounded batches of work items from an external data source.
//
// Every returned item is presumed claimed by the source, so a subsequent call
// does not return it again. Exactly-once claiming is the source's
// responsibility, not the queue's.
type ItemSource interface {
	// FetchBatch returns up to maxCount claimed items.
	//
	// Returning fewer than maxCount items, including zero, is not an error.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - maxCount: Maximum number of items to return
	//
	// Returns:
	//   - []WorkItem: Claimed items
	//   - error: Fetch error (nil on success)
	FetchBatch(ctx context.Context, maxCount int) ([]WorkItem, error)
}
