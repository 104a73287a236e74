// Package kvutil provides utilities for working with NATS JetStream KeyValue stores.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/fanout/internal/natsutil"
	"github.com/arloliu/fanout/internal/retry"
)

// EnsureKVBucket creates or opens a KV bucket, retrying connectivity errors.
//
// Concurrent creators of the same bucket are handled by falling back to
// opening the bucket when creation reports ErrBucketExists.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxAttempts: Maximum number of attempts (default: 3)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Any error that occurred after all attempts
//
// Example:
//
//	kv, err := kvutil.EnsureKVBucket(ctx, js, jetstream.KeyValueConfig{
//	    Bucket: "fanout-control",
//	}, 3)
func EnsureKVBucket(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxAttempts int,
) (jetstream.KeyValue, error) {
	policy := &retry.Policy{
		MaxAttempts: maxAttempts,
		Base:        10 * time.Millisecond,
		Multiplier:  2.0,
		Cap:         500 * time.Millisecond,
		Retryable: func(err error) bool {
			return natsutil.IsConnectivityError(err) || errors.Is(err, errOpenExisting)
		},
	}

	var kv jetstream.KeyValue
	err := policy.Do(ctx, func(ctx context.Context) error {
		created, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			kv = created

			return nil
		}
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return err
		}

		existing, err := js.KeyValue(ctx, config.Bucket)
		if err != nil {
			return fmt.Errorf("%w: %w", errOpenExisting, err)
		}
		kv = existing

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/open KV bucket %s: %w", config.Bucket, err)
	}

	return kv, nil
}

// errOpenExisting marks a bucket that exists but could not be opened yet,
// which happens while a concurrent creator is still finishing.
var errOpenExisting = errors.New("bucket exists but failed to open")
