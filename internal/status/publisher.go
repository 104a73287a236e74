// Package status publishes periodic run status snapshots to a NATS KV bucket.
//
// Operators read the key (e.g., "status.<run id>") to follow a long running
// process: its state, the current round and per-partition counters. The last
// snapshot written on Stop stays in the bucket until the bucket TTL expires.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"k8s.io/utils/clock"

	"github.com/arloliu/fanout/internal/logging"
	"github.com/arloliu/fanout/internal/worker"
	"github.com/arloliu/fanout/types"
)

// Publisher errors.
var (
	ErrNotStarted     = errors.New("status publisher not started")
	ErrAlreadyStarted = errors.New("status publisher already started")
)

// Snapshot is the JSON document stored under the status key.
type Snapshot struct {
	RunID      string                  `json:"runId"`
	State      string                  `json:"state"`
	Round      int64                   `json:"round"`
	Partitions map[string]worker.Stats `json:"partitions,omitempty"`
	UpdatedAt  time.Time               `json:"updatedAt"`
}

// SnapshotFunc returns the current status. It is called from the publisher
// goroutine and must be safe for concurrent use.
type SnapshotFunc func() Snapshot

// Publisher writes a snapshot to one KV key at a fixed interval.
type Publisher struct {
	kv       jetstream.KeyValue
	key      string
	interval time.Duration
	snapshot SnapshotFunc
	clock    clock.WithTicker
	logger   types.Logger

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger for publish failures.
func WithLogger(l types.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock sets the clock driving the publish interval.
func WithClock(c clock.WithTicker) Option {
	return func(p *Publisher) {
		if c != nil {
			p.clock = c
		}
	}
}

// New creates a status publisher.
//
// Parameters:
//   - kv: KV bucket receiving the snapshots
//   - key: Status key (e.g., "status.<run id>")
//   - interval: Publish interval
//   - snapshot: Snapshot provider
//   - opts: Optional logger and clock
//
// Returns:
//   - *Publisher: Publisher ready to Start
//
// Example:
//
//	pub := status.New(kv, "status."+ctrl.RunID(), 5*time.Second, func() status.Snapshot {
//	    return status.Snapshot{RunID: ctrl.RunID(), State: ctrl.State().String(), Round: ctrl.Round()}
//	})
//	if err := pub.Start(ctx); err != nil { /* handle */ }
//	defer pub.Stop()
func New(kv jetstream.KeyValue, key string, interval time.Duration, snapshot SnapshotFunc, opts ...Option) *Publisher {
	p := &Publisher{
		kv:       kv,
		key:      key,
		interval: interval,
		snapshot: snapshot,
		clock:    clock.RealClock{},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start publishes the first snapshot, then keeps publishing in the background
// until Stop is called or ctx ends.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	if err := p.publish(ctx); err != nil {
		return fmt.Errorf("publish initial status: %w", err)
	}

	p.started = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.loop(ctx, p.stopCh, p.doneCh)

	return nil
}

// Stop ends the background loop and writes a final snapshot.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()

		return ErrNotStarted
	}
	p.started = false
	close(p.stopCh)
	doneCh := p.doneCh
	p.mu.Unlock()

	<-doneCh

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.publish(ctx); err != nil {
		return fmt.Errorf("publish final status: %w", err)
	}

	return nil
}

func (p *Publisher) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C():
			pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := p.publish(pubCtx); err != nil {
				p.logger.Warn("failed to publish status", "key", p.key, "error", err)
			}
			cancel()
		}
	}
}

func (p *Publisher) publish(ctx context.Context) error {
	snap := p.snapshot()
	snap.UpdatedAt = p.clock.Now().UTC()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if _, err := p.kv.Put(ctx, p.key, data); err != nil {
		return err
	}

	return nil
}

// IsStarted reports whether the background loop is running.
func (p *Publisher) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.started
}
