// Package producer implements one round of the batch producer: fetch a batch
// from the item source, enqueue it, and (in sync-drain mode) wait for the
// workers to finish it.
package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"github.com/arloliu/fanout/internal/killswitch"
	"github.com/arloliu/fanout/internal/logging"
	"github.com/arloliu/fanout/internal/metrics"
	"github.com/arloliu/fanout/internal/queue"
	"github.com/arloliu/fanout/types"
)

// Config controls batch size and pacing mode.
type Config struct {
	// BatchSize is the maximum number of items fetched per round.
	BatchSize int

	// Mode selects sync-drain (default) or pipelined rounds.
	Mode types.ProducerMode
}

// Outcome describes one round.
type Outcome struct {
	// Fetched is the number of items returned by the source.
	Fetched int

	// Enqueued is the number of fetched items placed on the queue.
	Enqueued int

	// Empty is true when the source returned no items.
	Empty bool

	// Err is the fetch error, if any. The caller backs off and retries
	// on the next round.
	Err error

	// Duration covers fetch, enqueue and (in sync-drain mode) the drain wait.
	Duration time.Duration
}

// Option configures a Producer.
type Option func(*Producer)

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(p *Producer) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(p *Producer) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithClock sets the clock used for timing.
func WithClock(c clock.Clock) Option {
	return func(p *Producer) {
		if c != nil {
			p.clock = c
		}
	}
}

// Producer feeds the work queue from an item source.
type Producer struct {
	cfg    Config
	source types.ItemSource
	queue  *queue.Queue
	sw     *killswitch.Switch

	clock   clock.Clock
	logger  types.Logger
	metrics types.MetricsCollector
}

// New creates a producer.
//
// Parameters:
//   - source: Item source to fetch from
//   - q: Work queue shared with the workers
//   - sw: Kill switch interrupting enqueue and drain waits
//   - cfg: Batch size and mode
//   - opts: Optional logger, metrics and clock
//
// Returns:
//   - *Producer: Producer ready for RunRound
func New(source types.ItemSource, q *queue.Queue, sw *killswitch.Switch, cfg Config, opts ...Option) *Producer {
	if cfg.Mode == "" {
		cfg.Mode = types.ModeSyncDrain
	}

	p := &Producer{
		cfg:     cfg,
		source:  source,
		queue:   q,
		sw:      sw,
		clock:   clock.RealClock{},
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// RunRound fetches one batch, enqueues it and, in sync-drain mode, waits
// until the queue is drained.
//
// Fetch failures are reported in Outcome.Err, not as the returned error, so
// the caller can back off and try again next round.
//
// Parameters:
//   - ctx: Context for the round
//
// Returns:
//   - Outcome: Round result
//   - error: ErrStopped if the kill switch fired while enqueueing or waiting
//     for the drain, ctx.Err() if ctx ended
func (p *Producer) RunRound(ctx context.Context) (Outcome, error) {
	start := p.clock.Now()
	var out Outcome

	items, err := p.source.FetchBatch(ctx, p.cfg.BatchSize)
	p.metrics.RecordFetch(len(items), err == nil, p.clock.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		out.Err = err
		out.Duration = p.clock.Since(start)
		p.logger.Warn("fetch failed", "error", err)

		return out, nil
	}

	out.Fetched = len(items)
	if out.Fetched == 0 {
		out.Empty = true
		out.Duration = p.clock.Since(start)

		return out, nil
	}

	stopCtx, cancel := p.sw.Context(ctx)
	defer cancel()

	for _, item := range items {
		if err := p.queue.Enqueue(stopCtx, item); err != nil {
			out.Duration = p.clock.Since(start)
			p.logger.Warn("claimed items not enqueued",
				"enqueued", out.Enqueued,
				"dropped", out.Fetched-out.Enqueued,
				"error", err,
			)

			return out, p.stopErr(ctx, err)
		}
		out.Enqueued++
	}
	p.metrics.RecordQueueDepth(p.queue.Pending())
	p.logger.Debug("batch enqueued", "items", out.Enqueued, "mode", p.cfg.Mode.String())

	if p.cfg.Mode == types.ModePipelined {
		out.Duration = p.clock.Since(start)

		return out, nil
	}

	drainStart := p.clock.Now()
	err = p.queue.WaitUntilDrained(stopCtx)
	p.metrics.RecordDrainWait(p.clock.Since(drainStart).Seconds())
	out.Duration = p.clock.Since(start)
	if err != nil {
		p.logger.Info("drain wait interrupted", "pending", p.queue.Pending(), "error", err)

		return out, p.stopErr(ctx, err)
	}

	return out, nil
}

// stopErr maps an interrupted wait to ErrStopped when the kill switch caused it.
func (p *Producer) stopErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if p.sw.Tripped() || errors.Is(err, context.Canceled) {
		return types.ErrStopped
	}

	return fmt.Errorf("enqueue: %w", err)
}
