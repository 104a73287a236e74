package effect

import (
	"context"

	"github.com/arloliu/fanout/types"
)

// UpsertFunc is the function form of EffectAdapter.UpsertPrincipal.
type UpsertFunc func(ctx context.Context, partitionID string, item types.WorkItem) (types.UpsertResult, error)

// NotifyFunc is the function form of EffectAdapter.TriggerNotification.
type NotifyFunc func(ctx context.Context, partitionID string, item types.WorkItem) error

// Func adapts two functions to types.EffectAdapter. A nil Upsert reports
// every principal as created; a nil Notify does nothing.
type Func struct {
	Upsert UpsertFunc
	Notify NotifyFunc
}

var _ types.EffectAdapter = Func{}

// UpsertPrincipal calls f.Upsert.
func (f Func) UpsertPrincipal(ctx context.Context, partitionID string, item types.WorkItem) (types.UpsertResult, error) {
	if f.Upsert == nil {
		return types.UpsertCreated, ctx.Err()
	}

	return f.Upsert(ctx, partitionID, item)
}

// TriggerNotification calls f.Notify.
func (f Func) TriggerNotification(ctx context.Context, partitionID string, item types.WorkItem) error {
	if f.Notify == nil {
		return ctx.Err()
	}

	return f.Notify(ctx, partitionID, item)
}
