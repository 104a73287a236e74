package killswitch

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/fanout/types"
)

// WatchKV trips s when key in the JetStream KV bucket holds a true value.
//
// The current value is checked first, then updates are followed until ctx
// ends or the switch trips. Deleting or purging the key does not untrip the
// switch.
//
// Parameters:
//   - ctx: Context bounding the watch
//   - kv: KV bucket holding the switch key
//   - key: Switch key (e.g., "kill")
//   - s: Switch to trip
//   - logger: Logger for watch errors
//
// Returns:
//   - error: Watch setup error; nil when ctx ends or the switch trips
//
// Example:
//
//	kv, _ := kvutil.EnsureKVBucket(ctx, js, jetstream.KeyValueConfig{Bucket: "fanout-control"})
//	go killswitch.WatchKV(ctx, kv, "kill", sw, logger)
func WatchKV(ctx context.Context, kv jetstream.KeyValue, key string, s *Switch, logger types.Logger) error {
	watcher, err := kv.Watch(ctx, key)
	if err != nil {
		return fmt.Errorf("watch kill switch key %q: %w", key, err)
	}
	defer func() {
		if err := watcher.Stop(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("failed to stop kill switch watcher", "key", key, "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.Done():
			return nil
		case entry, ok := <-watcher.Updates():
			if !ok {
				return nil
			}
			if entry == nil {
				// End of initial values.
				continue
			}
			if entry.Operation() != jetstream.KeyValuePut {
				continue
			}
			if ParseValue(string(entry.Value())) {
				if s.Trip("kv") {
					logger.Info("kill switch tripped", "source", "kv", "key", key, "revision", entry.Revision())
				}

				return nil
			}
		}
	}
}
