// Package worker runs one sequential worker per partition against the shared
// work queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"k8s.io/utils/clock"

	"github.com/arloliu/fanout/internal/hooks"
	"github.com/arloliu/fanout/internal/killswitch"
	"github.com/arloliu/fanout/internal/logging"
	"github.com/arloliu/fanout/internal/metrics"
	"github.com/arloliu/fanout/internal/queue"
	"github.com/arloliu/fanout/types"
)

// Item outcomes reported to metrics and stats.
const (
	OutcomeCreated       = "created"
	OutcomeAlreadyExists = "already_exists"
	OutcomeFailed        = "failed"
)

// Config controls worker pacing and timeouts.
type Config struct {
	// DequeueTimeout bounds a single dequeue wait.
	DequeueTimeout time.Duration

	// IdleInterval is slept after a dequeue timeout.
	IdleInterval time.Duration

	// ItemTimeout bounds the effect calls of one item (0 = no timeout).
	ItemTimeout time.Duration

	// ItemPacing is slept after every processed item.
	ItemPacing time.Duration

	// FailurePause is slept after a failed item, in addition to ItemPacing.
	FailurePause time.Duration

	// ProgressEvery logs a progress line every N successful items (0 = never).
	ProgressEvery int

	// MaxConcurrent caps how many workers hold an item at once (0 = no cap).
	// Workers take turns, so every partition is still served.
	MaxConcurrent int
}

// Stats is a snapshot of one partition worker's counters.
type Stats struct {
	Processed      int64 `json:"processed"`
	Created        int64 `json:"created"`
	AlreadyExisted int64 `json:"alreadyExisted"`
	Failed         int64 `json:"failed"`
}

type counters struct {
	created        atomic.Int64
	alreadyExisted atomic.Int64
	failed         atomic.Int64
}

func (c *counters) snapshot() Stats {
	s := Stats{
		Created:        c.created.Load(),
		AlreadyExisted: c.alreadyExisted.Load(),
		Failed:         c.failed.Load(),
	}
	s.Processed = s.Created + s.AlreadyExisted + s.Failed

	return s
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(p *Pool) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithHooks sets the lifecycle hooks.
func WithHooks(h *types.Hooks) Option {
	return func(p *Pool) {
		p.hooks = hooks.Fill(h)
	}
}

// WithClock sets the clock used for idle, pacing and failure sleeps.
func WithClock(c clock.Clock) Option {
	return func(p *Pool) {
		if c != nil {
			p.clock = c
		}
	}
}

// Pool owns one worker goroutine per partition.
//
// Each worker processes items strictly one at a time. Workers observe the
// kill switch before every dequeue and finish an in-flight item before
// exiting. Cancelling the Run context abandons in-flight items.
type Pool struct {
	cfg    Config
	queue  *queue.Queue
	effect types.EffectAdapter
	sw     *killswitch.Switch

	clock   clock.Clock
	logger  types.Logger
	metrics types.MetricsCollector
	hooks   *types.Hooks

	slots   *semaphore.Weighted
	stats   *xsync.Map[string, *counters]
	active  atomic.Int32
	started atomic.Bool
}

// New creates a worker pool.
//
// Parameters:
//   - q: Shared work queue
//   - effect: Effect adapter applied to every item
//   - sw: Kill switch observed between items
//   - cfg: Pacing and timeout configuration
//   - opts: Optional logger, metrics, hooks and clock
//
// Returns:
//   - *Pool: Pool ready to Run
func New(q *queue.Queue, effect types.EffectAdapter, sw *killswitch.Switch, cfg Config, opts ...Option) *Pool {
	p := &Pool{
		cfg:     cfg,
		queue:   q,
		effect:  effect,
		sw:      sw,
		clock:   clock.RealClock{},
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
		hooks:   hooks.Fill(nil),
		stats:   xsync.NewMap[string, *counters](),
	}
	if cfg.MaxConcurrent > 0 {
		p.slots = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run starts one worker per partition and blocks until all of them exit.
//
// Workers exit when the kill switch trips or ctx ends. A worker that panics
// makes Run return an error wrapping ErrWorkerDied; the remaining workers
// then stop at their next safe point.
//
// Parameters:
//   - ctx: Context for the lifetime of the workers
//   - partitions: Partitions to serve, one worker each
//
// Returns:
//   - error: nil on cooperative stop, ErrWorkerDied on worker death,
//     ErrPoolAlreadyStarted if Run was called before
func (p *Pool) Run(ctx context.Context, partitions []types.Partition) error {
	if !p.started.CompareAndSwap(false, true) {
		return types.ErrPoolAlreadyStarted
	}

	for _, part := range partitions {
		p.stats.Store(part.ID, &counters{})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, part := range partitions {
		g.Go(func() error {
			return p.runWorker(gctx, part)
		})
	}

	return g.Wait()
}

// Active returns the number of running workers.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Stats returns a snapshot of per-partition counters keyed by partition ID.
func (p *Pool) Stats() map[string]Stats {
	out := make(map[string]Stats, p.stats.Size())
	p.stats.Range(func(id string, c *counters) bool {
		out[id] = c.snapshot()
		return true
	})

	return out
}

func (p *Pool) runWorker(ctx context.Context, part types.Partition) error {
	p.metrics.RecordActiveWorkers(int(p.active.Add(1)))
	defer func() {
		p.metrics.RecordActiveWorkers(int(p.active.Add(-1)))
	}()

	c, _ := p.stats.Load(part.ID)
	p.logger.Info("worker started", "partition_id", part.ID, "partition", part.DisplayName)

	// Dequeue waits end on a trip; effect calls run under ctx and only end
	// early when ctx is cancelled.
	stopCtx, cancel := p.sw.Context(ctx)
	defer cancel()

	for {
		if p.sw.Tripped() || ctx.Err() != nil {
			p.logger.Info("worker stopped", "partition_id", part.ID, "processed", c.snapshot().Processed)

			return nil
		}

		if !p.acquire(stopCtx) {
			continue
		}

		item, ok := p.queue.Dequeue(stopCtx, p.cfg.DequeueTimeout)
		if !ok {
			p.release()
			p.sw.Sleep(stopCtx, p.clock, p.cfg.IdleInterval)

			continue
		}

		failed, err := p.process(ctx, part, c, item)
		p.release()
		if err != nil {
			return err
		}

		pause := p.cfg.ItemPacing
		if failed {
			pause += p.cfg.FailurePause
		}
		p.sw.Sleep(stopCtx, p.clock, pause)
	}
}

// acquire takes a concurrency slot. Waiters are served in FIFO order.
func (p *Pool) acquire(ctx context.Context) bool {
	if p.slots == nil {
		return true
	}

	return p.slots.Acquire(ctx, 1) == nil
}

func (p *Pool) release() {
	if p.slots != nil {
		p.slots.Release(1)
	}
}

// process applies the effect to one item. The item is always marked done.
// A panic in the effect is returned as ErrWorkerDied.
func (p *Pool) process(ctx context.Context, part types.Partition, c *counters, item types.WorkItem) (failed bool, err error) {
	start := p.clock.Now()

	defer func() {
		if doneErr := p.queue.MarkDone(); doneErr != nil {
			p.logger.Error("mark done failed", "partition_id", part.ID, "item", item, "error", doneErr)
		}
		p.metrics.RecordQueueDepth(p.queue.Pending())

		if r := recover(); r != nil {
			c.failed.Add(1)
			p.metrics.RecordItem(part.ID, OutcomeFailed, p.clock.Since(start).Seconds())
			p.logger.Error("worker panicked", "partition_id", part.ID, "item", item, "panic", r)
			err = fmt.Errorf("%w: partition %s: %v", types.ErrWorkerDied, part.ID, r)
		}
	}()

	// The kill switch never interrupts an in-flight item; cancelling ctx does.
	itemCtx := ctx
	if p.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(itemCtx, p.cfg.ItemTimeout)
		defer cancel()
	}

	outcome, effErr := p.apply(itemCtx, part, item)
	elapsed := p.clock.Since(start).Seconds()
	p.metrics.RecordItem(part.ID, outcome, elapsed)

	if effErr != nil {
		c.failed.Add(1)
		p.logger.Error("item failed", "partition_id", part.ID, "item", item, "error", effErr)
		p.fireItemFailed(ctx, part, item, effErr)

		return true, nil
	}

	switch outcome {
	case OutcomeAlreadyExists:
		c.alreadyExisted.Add(1)
	default:
		c.created.Add(1)
	}
	p.logger.Info("item processed", "partition_id", part.ID, "item", item, "result", outcome)

	if every := p.cfg.ProgressEvery; every > 0 {
		s := c.snapshot()
		if succeeded := s.Created + s.AlreadyExisted; succeeded%int64(every) == 0 {
			p.logger.Info("worker progress", "partition_id", part.ID, "succeeded", succeeded, "failed", s.Failed)
		}
	}

	return false, nil
}

// apply runs upsert then notification. An already-existing principal still
// gets the notification.
func (p *Pool) apply(ctx context.Context, part types.Partition, item types.WorkItem) (string, error) {
	res, err := p.effect.UpsertPrincipal(ctx, part.ID, item)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("upsert principal: %w", err)
	}

	outcome := OutcomeCreated
	if res == types.UpsertAlreadyExists {
		outcome = OutcomeAlreadyExists
		p.logger.Debug("principal already exists", "partition_id", part.ID, "item", item)
	}

	if err := p.effect.TriggerNotification(ctx, part.ID, item); err != nil {
		return OutcomeFailed, fmt.Errorf("trigger notification: %w", err)
	}

	return outcome, nil
}

func (p *Pool) fireItemFailed(ctx context.Context, part types.Partition, item types.WorkItem, cause error) {
	hookCtx := context.WithoutCancel(ctx)
	go func() {
		if err := p.hooks.OnItemFailed(hookCtx, part, item, cause); err != nil {
			p.logger.Error("item failed hook error", "partition_id", part.ID, "item", item, "error", err)
		}
	}()
}

// IsWorkerDeath reports whether err came from a dead worker.
func IsWorkerDeath(err error) bool {
	return errors.Is(err, types.ErrWorkerDied)
}
