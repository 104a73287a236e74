package kvutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	fanouttest "github.com/arloliu/fanout/testing"
)

func TestEnsureKVBucket(t *testing.T) {
	_, nc := fanouttest.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	t.Run("creates bucket", func(t *testing.T) {
		kv, err := EnsureKVBucket(t.Context(), js, jetstream.KeyValueConfig{
			Bucket:  "fanout-create",
			History: 1,
		}, 3)
		require.NoError(t, err)
		require.Equal(t, "fanout-create", kv.Bucket())
	})

	t.Run("opens existing bucket", func(t *testing.T) {
		cfg := jetstream.KeyValueConfig{Bucket: "fanout-existing", History: 1}

		kv1, err := js.CreateKeyValue(t.Context(), cfg)
		require.NoError(t, err)
		_, err = kv1.PutString(t.Context(), "kill", "false")
		require.NoError(t, err)

		kv2, err := EnsureKVBucket(t.Context(), js, cfg, 3)
		require.NoError(t, err)

		entry, err := kv2.Get(t.Context(), "kill")
		require.NoError(t, err)
		require.Equal(t, "false", string(entry.Value()))
	})

	t.Run("concurrent creators all succeed", func(t *testing.T) {
		const numWorkers = 10
		cfg := jetstream.KeyValueConfig{Bucket: "fanout-concurrent", History: 1}

		var wg sync.WaitGroup
		errs := make(chan error, numWorkers)
		for range numWorkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := EnsureKVBucket(t.Context(), js, cfg, 5); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
	})

	t.Run("expired context fails", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)

		_, err := EnsureKVBucket(ctx, js, jetstream.KeyValueConfig{Bucket: "fanout-timeout"}, 3)
		require.Error(t, err)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
