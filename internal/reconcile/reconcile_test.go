package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/arloliu/fanout/directory"
	"github.com/arloliu/fanout/types"
	"github.com/stretchr/testify/require"
)

func seeded(n int) []types.Partition {
	ps := make([]types.Partition, n)
	for i := range ps {
		ps[i] = types.Partition{ID: fmt.Sprintf("seed-%d", i), DisplayName: fmt.Sprintf("tenant-%d", i)}
	}

	return ps
}

func displayNames(ps []types.Partition) []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.DisplayName
	}

	return names
}

func TestEnsurePartitionCount(t *testing.T) {
	t.Run("creates exactly the deficit", func(t *testing.T) {
		for _, tc := range []struct{ existing, target int }{{0, 3}, {1, 4}, {3, 10}} {
			t.Run(fmt.Sprintf("%d to %d", tc.existing, tc.target), func(t *testing.T) {
				dir := directory.NewMemory(directory.WithPartitions(seeded(tc.existing)...))

				res, err := New(dir).EnsurePartitionCount(t.Context(), tc.target)
				require.NoError(t, err)
				require.Equal(t, tc.existing, res.Existing)
				require.Len(t, res.Created, tc.target-tc.existing)
				require.Empty(t, res.Failed)
				require.Len(t, res.Partitions, tc.target)
			})
		}
	})

	t.Run("no-op when count is already satisfied", func(t *testing.T) {
		dir := directory.NewMemory(directory.WithPartitions(seeded(4)...))

		res, err := New(dir).EnsurePartitionCount(t.Context(), 3)
		require.NoError(t, err)
		require.Empty(t, res.Created)
		require.Len(t, res.Partitions, 4)
		require.Equal(t, 4, dir.Len())
		require.Equal(t, 1, dir.ListCalls(), "no re-list when nothing was created")
	})

	t.Run("rerun is idempotent", func(t *testing.T) {
		dir := directory.NewMemory()
		r := New(dir)

		first, err := r.EnsurePartitionCount(t.Context(), 3)
		require.NoError(t, err)
		require.Len(t, first.Created, 3)

		second, err := r.EnsurePartitionCount(t.Context(), 3)
		require.NoError(t, err)
		require.Empty(t, second.Created)
		require.Equal(t, first.Partitions, second.Partitions)
	})

	t.Run("two existing grow to five with distinct names", func(t *testing.T) {
		dir := directory.NewMemory(directory.WithPartitions(seeded(2)...))

		res, err := New(dir).EnsurePartitionCount(t.Context(), 5)
		require.NoError(t, err)
		require.Equal(t, []string{"tenant-2", "tenant-3", "tenant-4"}, displayNames(res.Created))
		require.Len(t, res.Partitions, 5)
		require.ElementsMatch(t,
			[]string{"tenant-0", "tenant-1", "tenant-2", "tenant-3", "tenant-4"},
			displayNames(res.Partitions))
	})

	t.Run("skips names already in use", func(t *testing.T) {
		dir := directory.NewMemory(directory.WithPartitions(
			types.Partition{ID: "x", DisplayName: "tenant-2"},
			types.Partition{ID: "y", DisplayName: "manual"},
		))

		res, err := New(dir).EnsurePartitionCount(t.Context(), 4)
		require.NoError(t, err)
		require.Equal(t, []string{"tenant-3", "tenant-4"}, displayNames(res.Created))
		require.Len(t, res.Partitions, 4)
	})

	t.Run("custom prefix and partition config", func(t *testing.T) {
		dir := directory.NewMemory()
		cfg := types.PartitionConfig{AllowPasswordSignup: true, EnableEmailLinkSignin: true}

		res, err := New(dir, WithPrefix("shard"), WithPartitionConfig(cfg)).EnsurePartitionCount(t.Context(), 1)
		require.NoError(t, err)
		require.Equal(t, []string{"shard-0"}, displayNames(res.Created))

		got, ok := dir.Config(res.Created[0].ID)
		require.True(t, ok)
		require.Equal(t, cfg, got)
	})

	t.Run("failed creations are skipped and reported", func(t *testing.T) {
		dir := directory.NewMemory()
		boom := errors.New("quota exceeded")
		dir.FailCreate("tenant-1", boom)

		var (
			mu   sync.Mutex
			errs []error
		)
		r := New(dir, WithErrorHandler(func(_ context.Context, err error) {
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
		}))

		res, err := r.EnsurePartitionCount(t.Context(), 3)
		require.NoError(t, err)
		require.Equal(t, []string{"tenant-0", "tenant-2"}, displayNames(res.Created))
		require.Equal(t, []string{"tenant-1"}, res.Failed)
		require.Len(t, res.Partitions, 2)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, errs, 1)
		require.ErrorIs(t, errs[0], types.ErrCreatePartition)
		require.ErrorIs(t, errs[0], boom)
	})

	t.Run("drains every page", func(t *testing.T) {
		dir := directory.NewMemory(directory.WithPageSize(2), directory.WithPartitions(seeded(5)...))

		res, err := New(dir).EnsurePartitionCount(t.Context(), 5)
		require.NoError(t, err)
		require.Len(t, res.Partitions, 5)
		require.Equal(t, 3, dir.ListCalls())
	})

	t.Run("listing failure is returned", func(t *testing.T) {
		dir := directory.NewMemory()
		dir.FailList(errors.New("unavailable"))

		_, err := New(dir).EnsurePartitionCount(t.Context(), 2)
		require.ErrorIs(t, err, types.ErrListPartitions)
		require.Equal(t, 0, dir.Len())
	})

	t.Run("cancelled context stops creation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := New(directory.NewMemory()).EnsurePartitionCount(ctx, 2)
		require.ErrorIs(t, err, context.Canceled)
	})
}
