package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/arloliu/fanout/types"
	"github.com/stretchr/testify/require"
)

func TestNewNop(t *testing.T) {
	hooks := NewNop()

	require.NotNil(t, hooks.OnStateChanged)
	require.NotNil(t, hooks.OnRoundCompleted)
	require.NotNil(t, hooks.OnItemFailed)
	require.NotNil(t, hooks.OnError)
}

func TestNopHooks_Callbacks(t *testing.T) {
	hooks := NewNop()
	ctx := t.Context()

	require.NoError(t, hooks.OnStateChanged(ctx, types.StateStarting, types.StateReconciling))
	require.NoError(t, hooks.OnRoundCompleted(ctx, 1, 3))
	require.NoError(t, hooks.OnItemFailed(ctx, types.Partition{ID: "t-0"}, "a@example.com", errors.New("boom")))
	require.NoError(t, hooks.OnError(ctx, context.Canceled))
}

func TestFill(t *testing.T) {
	t.Run("nil hooks become nop", func(t *testing.T) {
		h := Fill(nil)
		require.NotNil(t, h.OnStateChanged)
		require.NotNil(t, h.OnRoundCompleted)
		require.NotNil(t, h.OnItemFailed)
		require.NotNil(t, h.OnError)
	})

	t.Run("keeps user callbacks", func(t *testing.T) {
		called := false
		h := Fill(&types.Hooks{
			OnItemFailed: func(context.Context, types.Partition, types.WorkItem, error) error {
				called = true
				return nil
			},
		})

		require.NoError(t, h.OnItemFailed(t.Context(), types.Partition{}, "x", nil))
		require.True(t, called)
		require.NoError(t, h.OnError(t.Context(), errors.New("ignored")))
	})
}
