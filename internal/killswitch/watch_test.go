package killswitch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/fanout/internal/logging"
	fanouttest "github.com/arloliu/fanout/testing"
)

func TestWatchKV(t *testing.T) {
	_, nc := fanouttest.StartEmbeddedNATS(t)

	t.Run("trips on true value", func(t *testing.T) {
		kv := fanouttest.CreateJetStreamKV(t, nc, "control-trip")
		s := New()

		done := make(chan error, 1)
		go func() { done <- WatchKV(t.Context(), kv, "kill", s, logging.NewNop()) }()

		_, err := kv.PutString(t.Context(), "kill", "false")
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
		require.False(t, s.Tripped())

		_, err = kv.PutString(t.Context(), "kill", "true")
		require.NoError(t, err)

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not return after trip")
		}
		require.True(t, s.Tripped())
		require.Equal(t, "kv", s.Reason())
	})

	t.Run("trips on existing value", func(t *testing.T) {
		kv := fanouttest.CreateJetStreamKV(t, nc, "control-existing")
		_, err := kv.PutString(t.Context(), "kill", "1")
		require.NoError(t, err)

		s := New()
		require.NoError(t, WatchKV(t.Context(), kv, "kill", s, logging.NewNop()))
		require.True(t, s.Tripped())
	})

	t.Run("returns on context cancel", func(t *testing.T) {
		kv := fanouttest.CreateJetStreamKV(t, nc, "control-cancel")
		s := New()

		ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
		defer cancel()

		require.NoError(t, WatchKV(ctx, kv, "kill", s, logging.NewNop()))
		require.False(t, s.Tripped())
	})
}
