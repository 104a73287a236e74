// Package hooks provides default lifecycle hook implementations.
package hooks

import (
	"context"

	"github.com/arloliu/fanout/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.State, types.State) error               = (*NopHooks)(nil).OnStateChanged
	_ func(context.Context, int64, int) error                             = (*NopHooks)(nil).OnRoundCompleted
	_ func(context.Context, types.Partition, types.WorkItem, error) error = (*NopHooks)(nil).OnItemFailed
	_ func(context.Context, error) error                                  = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}

	return types.Hooks{
		OnStateChanged:   h.OnStateChanged,
		OnRoundCompleted: h.OnRoundCompleted,
		OnItemFailed:     h.OnItemFailed,
		OnError:          h.OnError,
	}
}

// Fill returns a copy of h with every nil callback replaced by its no-op.
//
// Parameters:
//   - h: User-supplied hooks (may be nil)
//
// Returns:
//   - *types.Hooks: Hooks with all callbacks set
func Fill(h *types.Hooks) *types.Hooks {
	out := NewNop()
	if h == nil {
		return &out
	}

	if h.OnStateChanged != nil {
		out.OnStateChanged = h.OnStateChanged
	}
	if h.OnRoundCompleted != nil {
		out.OnRoundCompleted = h.OnRoundCompleted
	}
	if h.OnItemFailed != nil {
		out.OnItemFailed = h.OnItemFailed
	}
	if h.OnError != nil {
		out.OnError = h.OnError
	}

	return &out
}

// OnStateChanged is a no-op implementation.
func (h *NopHooks) OnStateChanged(_ context.Context, _, _ types.State) error {
	return nil
}

// OnRoundCompleted is a no-op implementation.
func (h *NopHooks) OnRoundCompleted(_ context.Context, _ int64, _ int) error {
	return nil
}

// OnItemFailed is a no-op implementation.
func (h *NopHooks) OnItemFailed(_ context.Context, _ types.Partition, _ types.WorkItem, _ error) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}
