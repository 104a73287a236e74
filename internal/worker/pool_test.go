package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/fanout/internal/killswitch"
	"github.com/arloliu/fanout/internal/queue"
	fanouttest "github.com/arloliu/fanout/testing"
	"github.com/arloliu/fanout/types"
)

func testConfig() Config {
	return Config{
		DequeueTimeout: 10 * time.Millisecond,
		IdleInterval:   time.Millisecond,
		ItemTimeout:    time.Second,
		ProgressEvery:  2,
	}
}

func partitions(n int) []types.Partition {
	ps := make([]types.Partition, n)
	for i := range ps {
		ps[i] = types.Partition{ID: fmt.Sprintf("tenant-%d-id", i), DisplayName: fmt.Sprintf("tenant-%d", i)}
	}

	return ps
}

type harness struct {
	q      *queue.Queue
	sw     *killswitch.Switch
	effect *fanouttest.RecordingEffect
	pool   *Pool
	errCh  chan error
}

func startPool(t *testing.T, n int, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		q:      queue.New(),
		sw:     killswitch.New(),
		effect: fanouttest.NewRecordingEffect(),
		errCh:  make(chan error, 1),
	}
	opts = append([]Option{WithLogger(fanouttest.NewTestLogger(t))}, opts...)
	h.pool = New(h.q, h.effect, h.sw, testConfig(), opts...)

	go func() { h.errCh <- h.pool.Run(context.Background(), partitions(n)) }()
	require.Eventually(t, func() bool { return h.pool.Active() == n }, time.Second, time.Millisecond)

	t.Cleanup(func() { h.sw.Trip("cleanup") })

	return h
}

func (h *harness) stop(t *testing.T) error {
	t.Helper()
	h.sw.Trip("test")

	select {
	case err := <-h.errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
		return nil
	}
}

func TestPool_ProcessesEachItemOnce(t *testing.T) {
	h := startPool(t, 3)
	ctx := t.Context()

	const n = 60
	for i := range n {
		require.NoError(t, h.q.Enqueue(ctx, types.WorkItem(fmt.Sprintf("user-%d@example.com", i))))
	}
	require.NoError(t, h.q.WaitUntilDrained(ctx))
	require.NoError(t, h.stop(t))

	seen := make(map[types.WorkItem]int)
	for _, item := range h.effect.Notified() {
		seen[item]++
	}
	require.Len(t, seen, n)
	for item, count := range seen {
		require.Equal(t, 1, count, "item %s", item)
	}

	var total int64
	for _, s := range h.pool.Stats() {
		total += s.Processed
	}
	require.Equal(t, int64(n), total)
	require.Equal(t, 0, h.pool.Active())
}

func TestPool_AlreadyExistsStillNotifies(t *testing.T) {
	h := startPool(t, 1)
	h.effect.Exists("old@example.com")

	require.NoError(t, h.q.Enqueue(t.Context(), "old@example.com"))
	require.NoError(t, h.q.WaitUntilDrained(t.Context()))
	require.NoError(t, h.stop(t))

	calls := h.effect.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, "upsert", calls[0].Op)
	require.Equal(t, "notify", calls[1].Op)
	require.Equal(t, types.WorkItem("old@example.com"), calls[1].Item)

	s := h.pool.Stats()["tenant-0-id"]
	require.Equal(t, int64(1), s.AlreadyExisted)
	require.Equal(t, int64(0), s.Failed)
}

func TestPool_FailureDropsItemAndMarksDone(t *testing.T) {
	var (
		mu     sync.Mutex
		failed []types.WorkItem
	)
	hookCalled := make(chan struct{}, 2)
	h := startPool(t, 1, WithHooks(&types.Hooks{
		OnItemFailed: func(_ context.Context, p types.Partition, item types.WorkItem, err error) error {
			mu.Lock()
			failed = append(failed, item)
			mu.Unlock()
			hookCalled <- struct{}{}

			return errors.New("dead letter store unavailable")
		},
	}))

	upsertErr := errors.New("HTTP 400 INVALID_EMAIL")
	h.effect.FailUpsert("bad@example.com", upsertErr)
	h.effect.FailNotify("nomail@example.com", errors.New("quota"))

	ctx := t.Context()
	require.NoError(t, h.q.Enqueue(ctx, "bad@example.com"))
	require.NoError(t, h.q.Enqueue(ctx, "nomail@example.com"))
	require.NoError(t, h.q.Enqueue(ctx, "ok@example.com"))
	require.NoError(t, h.q.WaitUntilDrained(ctx))

	for range 2 {
		select {
		case <-hookCalled:
		case <-time.After(time.Second):
			t.Fatal("OnItemFailed not called")
		}
	}
	require.NoError(t, h.stop(t))

	mu.Lock()
	require.ElementsMatch(t, []types.WorkItem{"bad@example.com", "nomail@example.com"}, failed)
	mu.Unlock()

	// A failed upsert never reaches notification and is not retried.
	upserts := 0
	for _, c := range h.effect.Calls() {
		if c.Item == "bad@example.com" {
			require.Equal(t, "upsert", c.Op)
			upserts++
		}
	}
	require.Equal(t, 1, upserts)
	require.Equal(t, 0, h.q.Pending())

	s := h.pool.Stats()["tenant-0-id"]
	require.Equal(t, int64(2), s.Failed)
	require.Equal(t, int64(1), s.Created)
	require.Equal(t, int64(3), s.Processed)
}

func TestPool_PanicIsFatal(t *testing.T) {
	h := startPool(t, 2)
	h.effect.PanicOn("boom@example.com")

	require.NoError(t, h.q.Enqueue(t.Context(), "boom@example.com"))

	select {
	case err := <-h.errCh:
		require.ErrorIs(t, err, types.ErrWorkerDied)
		require.True(t, IsWorkerDeath(err))
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not report worker death")
	}
	require.Equal(t, 0, h.q.Pending(), "panicking item must still be marked done")
}

func TestPool_KillSwitchLetsInFlightItemFinish(t *testing.T) {
	h := startPool(t, 1)
	h.effect.Delay = 50 * time.Millisecond

	require.NoError(t, h.q.Enqueue(t.Context(), "slow@example.com"))

	select {
	case call := <-h.effect.Recorded():
		require.Equal(t, "upsert", call.Op)
	case <-time.After(time.Second):
		t.Fatal("item not picked up")
	}

	require.NoError(t, h.stop(t))
	require.Equal(t, []types.WorkItem{"slow@example.com"}, h.effect.Notified())
}

func TestPool_StopsWithoutTakingQueuedItems(t *testing.T) {
	h := startPool(t, 1)
	require.NoError(t, h.stop(t))

	require.NoError(t, h.q.Enqueue(t.Context(), "late@example.com"))
	time.Sleep(30 * time.Millisecond)

	require.Equal(t, 1, h.q.Len())
	require.Empty(t, h.effect.Calls())
}

func TestPool_RunTwice(t *testing.T) {
	h := startPool(t, 1)
	require.ErrorIs(t, h.pool.Run(t.Context(), partitions(1)), types.ErrPoolAlreadyStarted)
	require.NoError(t, h.stop(t))
}

func TestPool_ContextCancelStopsWorkers(t *testing.T) {
	q := queue.New()
	p := New(q, fanouttest.NewRecordingEffect(), killswitch.New(), testConfig())

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx, partitions(2)) }()

	require.Eventually(t, func() bool { return p.Active() == 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop on cancel")
	}
}

func TestPool_ContextCancelAbandonsInFlightItem(t *testing.T) {
	q := queue.New()
	sw := killswitch.New()
	effect := fanouttest.NewRecordingEffect()
	effect.Delay = 5 * time.Second

	cfg := testConfig()
	cfg.ItemTimeout = 0
	p := New(q, effect, sw, cfg)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx, partitions(1)) }()

	require.NoError(t, q.Enqueue(t.Context(), "slow@example.com"))
	require.Eventually(t, func() bool { return q.InFlight() == 1 }, time.Second, time.Millisecond)

	sw.Trip("test")
	select {
	case <-errCh:
		t.Fatal("kill switch must not interrupt the in-flight item")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("cancel did not reach the in-flight item")
	}

	require.Empty(t, effect.Notified())
	require.Equal(t, int64(1), p.Stats()["tenant-0-id"].Failed)
	require.Equal(t, 0, q.Pending())
}

func TestPool_MaxConcurrentRotatesPartitions(t *testing.T) {
	q := queue.New()
	sw := killswitch.New()
	effect := fanouttest.NewRecordingEffect()
	effect.Delay = 2 * time.Millisecond

	cfg := testConfig()
	cfg.MaxConcurrent = 1
	p := New(q, effect, sw, cfg, WithLogger(fanouttest.NewTestLogger(t)))

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(t.Context(), partitions(3)) }()
	defer sw.Trip("cleanup")

	for i := range 12 {
		require.NoError(t, q.Enqueue(t.Context(), types.WorkItem(fmt.Sprintf("user%02d@example.com", i))))
	}

	maxInFlight := 0
	require.Eventually(t, func() bool {
		maxInFlight = max(maxInFlight, q.InFlight())
		return len(effect.Notified()) == 12
	}, 5*time.Second, 100*time.Microsecond)
	require.LessOrEqual(t, maxInFlight, 1)

	sw.Trip("test")
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}

	for id, s := range p.Stats() {
		require.Positive(t, s.Processed, "partition %s never got a turn", id)
	}
}
