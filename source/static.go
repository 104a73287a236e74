package source

import (
	"context"
	"sync"

	"github.com/arloliu/fanout/types"
)

// Static implements an item source over a fixed list of items.
//
// Every item is handed out exactly once, in order. Once the list is
// exhausted FetchBatch returns empty batches until Add is called.
type Static struct {
	mu    sync.Mutex
	items []types.WorkItem
}

var _ types.ItemSource = (*Static)(nil)

// NewStatic creates a new static item source.
//
// Useful for testing, demos, and one-off runs over a known list.
//
// Parameters:
//   - items: Items to hand out
//
// Returns:
//   - *Static: Initialized static source
//
// Example:
//
//	src := source.NewStatic([]types.WorkItem{"a@example.com", "b@example.com"})
//	ctrl, err := fanout.NewController(&cfg, src, dir, eff)
//	if err != nil { /* handle */ }
func NewStatic(items []types.WorkItem) *Static {
	s := &Static{
		items: make([]types.WorkItem, len(items)),
	}
	copy(s.items, items)

	return s
}

// FetchBatch claims up to maxCount items from the front of the list.
//
// Returns:
//   - []types.WorkItem: Claimed items (empty when exhausted)
//   - error: ctx.Err() if ctx is done, otherwise nil
func (s *Static) FetchBatch(ctx context.Context, maxCount int) ([]types.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := min(max(maxCount, 0), len(s.items))
	batch := make([]types.WorkItem, n)
	copy(batch, s.items[:n])
	s.items = s.items[n:]

	return batch, nil
}

// Add appends items to the end of the list.
//
// Parameters:
//   - items: Items to hand out after the current ones
//
// Example:
//
//	src := source.NewStatic(nil)
//	// Later: feed more work
//	src.Add("c@example.com")
func (s *Static) Add(items ...types.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, items...)
}

// Len returns the number of items not yet handed out.
func (s *Static) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}
