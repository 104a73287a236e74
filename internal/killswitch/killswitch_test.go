package killswitch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"
	testclock "k8s.io/utils/clock/testing"
)

func TestSwitch_Trip(t *testing.T) {
	s := New()
	require.False(t, s.Tripped())
	require.Empty(t, s.Reason())

	select {
	case <-s.Done():
		t.Fatal("done closed before trip")
	default:
	}

	require.True(t, s.Trip("env"))
	require.False(t, s.Trip("signal"))
	require.True(t, s.Tripped())
	require.Equal(t, "env", s.Reason())

	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed after trip")
	}
}

func TestSwitch_ConcurrentTrip(t *testing.T) {
	s := New()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		first int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Trip("race") {
				mu.Lock()
				first++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, first)
}

func TestSwitch_Context(t *testing.T) {
	t.Run("cancelled on trip", func(t *testing.T) {
		s := New()
		ctx, cancel := s.Context(t.Context())
		defer cancel()

		s.Trip("test")

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("context not cancelled after trip")
		}
	})

	t.Run("cancel func releases", func(t *testing.T) {
		s := New()
		ctx, cancel := s.Context(t.Context())
		cancel()

		require.Error(t, ctx.Err())
		require.False(t, s.Tripped())
	})
}

func TestParseValue(t *testing.T) {
	for _, v := range []string{"true", "TRUE", " True ", "1", "yes", "on"} {
		require.True(t, ParseValue(v), v)
	}
	for _, v := range []string{"", "false", "0", "no", "off", "maybe"} {
		require.False(t, ParseValue(v), v)
	}
}

func TestSwitch_Sleep(t *testing.T) {
	t.Run("full duration on fake clock", func(t *testing.T) {
		fakeClock := testclock.NewFakeClock(time.Now())
		s := New()

		done := make(chan bool, 1)
		go func() { done <- s.Sleep(context.Background(), fakeClock, time.Minute) }()

		require.Eventually(t, fakeClock.HasWaiters, time.Second, time.Millisecond)
		fakeClock.Step(time.Minute)
		require.True(t, <-done)
	})

	t.Run("interrupted by trip", func(t *testing.T) {
		fakeClock := testclock.NewFakeClock(time.Now())
		s := New()

		done := make(chan bool, 1)
		go func() { done <- s.Sleep(context.Background(), fakeClock, time.Hour) }()

		require.Eventually(t, fakeClock.HasWaiters, time.Second, time.Millisecond)
		s.Trip("test")
		require.False(t, <-done)
	})

	t.Run("interrupted by context", func(t *testing.T) {
		s := New()
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		require.False(t, s.Sleep(ctx, clock.RealClock{}, time.Hour))
	})

	t.Run("zero duration", func(t *testing.T) {
		s := New()
		require.True(t, s.Sleep(t.Context(), clock.RealClock{}, 0))
		s.Trip("test")
		require.False(t, s.Sleep(t.Context(), clock.RealClock{}, 0))
	})
}
