package fanout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/arloliu/fanout/internal/hooks"
	"github.com/arloliu/fanout/internal/killswitch"
	"github.com/arloliu/fanout/internal/logging"
	"github.com/arloliu/fanout/internal/metrics"
	"github.com/arloliu/fanout/internal/producer"
	"github.com/arloliu/fanout/internal/queue"
	"github.com/arloliu/fanout/internal/reconcile"
	"github.com/arloliu/fanout/internal/worker"
)

// PartitionStats holds the per-partition item counters of a worker.
type PartitionStats = worker.Stats

// Controller runs the work-distribution engine.
//
// Controller is the main entry point of the fanout library. It handles:
//   - Partition reconciliation at startup (ensure TargetPartitions exist)
//   - One worker per partition for the lifetime of the run, at most
//     MaxWorkers of them busy at once
//   - Numbered rounds of fetch, enqueue and drain
//   - Cooperative shutdown through the kill switch or context cancellation
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - State transitions are atomic and validated against a fixed table
//
// Lifecycle:
//   - Create with NewController()
//   - Call Run() once; it blocks until the run is stopped
//   - Call Kill() (or trip the injected kill switch) to stop
type Controller struct {
	cfg       Config
	source    ItemSource
	directory PartitionDirectory
	effect    EffectAdapter

	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger
	clock   clock.Clock
	sw      *KillSwitch
	runID   string

	// Internal components
	queue      *queue.Queue
	reconciler *reconcile.Reconciler
	producer   *producer.Producer
	pool       *worker.Pool

	// State management
	state      atomic.Int32 // State
	round      atomic.Int64
	started    atomic.Bool
	partitions []Partition
	mu         sync.RWMutex

	hookCtx context.Context
}

// NewController creates a Controller.
//
// The configuration is defaulted and validated before anything starts, so a
// fatal misconfiguration (such as a target above the safety ceiling) never
// reaches the Running state.
//
// Parameters:
//   - cfg: Configuration (defaults applied in place)
//   - source: Item source the producer fetches batches from
//   - directory: Partition directory to reconcile against
//   - effect: Effect adapter the workers apply to every item
//   - opts: Optional configuration (hooks, metrics, logger, clock, kill switch)
//
// Returns:
//   - *Controller: Initialized controller in StateStarting
//   - error: Error wrapping ErrInvalidConfig, or a missing collaborator error
//
// Example:
//
//	cfg := fanout.DefaultConfig()
//	src := source.NewStatic(items)
//	dir := directory.NewMemory()
//	ctrl, err := fanout.NewController(&cfg, src, dir, effect.Func(upsert, notify))
//	if err != nil { /* handle */ }
//	err = ctrl.Run(ctx)
func NewController(cfg *Config, source ItemSource, directory PartitionDirectory, effect EffectAdapter, opts ...Option) (*Controller, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if source == nil {
		return nil, ErrItemSourceRequired
	}
	if directory == nil {
		return nil, ErrPartitionDirectoryRequired
	}
	if effect == nil {
		return nil, ErrEffectAdapterRequired
	}

	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &controllerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	cfg.ValidateWithWarnings(loggerInstance)

	clk := options.clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	sw := options.killSwitch
	if sw == nil {
		sw = killswitch.New()
	}

	c := &Controller{
		cfg:       *cfg,
		source:    source,
		directory: directory,
		effect:    effect,
		hooks:     hooks.Fill(options.hooks),
		metrics:   metricsCollector,
		logger:    loggerInstance,
		clock:     clk,
		sw:        sw,
		runID:     uuid.NewString(),
		hookCtx:   context.Background(),
	}

	c.queue = queue.New(
		queue.WithCapacity(cfg.QueueCapacity),
		queue.WithClock(clk),
	)
	c.reconciler = reconcile.New(directory,
		reconcile.WithPrefix(cfg.PartitionNamePrefix),
		reconcile.WithPartitionConfig(cfg.Partition),
		reconcile.WithLogger(loggerInstance),
		reconcile.WithMetrics(metricsCollector),
		reconcile.WithErrorHandler(c.fireError),
	)
	c.producer = c.newProducer(cfg.BatchSize)
	c.pool = worker.New(c.queue, effect, sw,
		worker.Config{
			DequeueTimeout: cfg.DequeueTimeout,
			IdleInterval:   cfg.IdleInterval,
			ItemTimeout:    cfg.ItemTimeout,
			ItemPacing:     cfg.ItemPacing,
			FailurePause:   cfg.FailurePause,
			ProgressEvery:  cfg.ProgressEvery,
			MaxConcurrent:  cfg.MaxWorkers,
		},
		worker.WithLogger(loggerInstance),
		worker.WithMetrics(metricsCollector),
		worker.WithHooks(c.hooks),
		worker.WithClock(clk),
	)

	c.state.Store(int32(StateStarting))

	return c, nil
}

// Run reconciles partitions, starts the workers and produces rounds until
// the kill switch trips, ctx is cancelled or a worker dies.
//
// Run may be called once. After a kill switch trip workers finish their
// in-flight item before exiting; Run waits up to ShutdownTimeout for them.
// Cancelling ctx also cancels the in-flight effect calls.
//
// Parameters:
//   - ctx: Context for the run; cancellation stops it like the kill switch
//
// Returns:
//   - error: nil after a cooperative stop, ErrNoPartitions, a listing error
//     wrapping ErrListPartitions, or an error wrapping ErrWorkerDied
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	c.mu.Lock()
	c.hookCtx = context.WithoutCancel(ctx)
	c.mu.Unlock()

	defer c.queue.Close()

	c.logger.Info("controller starting",
		"run_id", c.runID,
		"target_partitions", c.cfg.TargetPartitions,
		"max_workers", c.cfg.MaxWorkers,
		"batch_size", c.cfg.BatchSize,
		"mode", c.cfg.Mode.String(),
	)

	if c.cfg.KillSwitch {
		c.sw.Trip("config")
	}
	if c.sw.Tripped() {
		c.logger.Info("kill switch set before start", "run_id", c.runID, "reason", c.sw.Reason())
		c.stop(StateStarting)

		return nil
	}

	c.transitionState(StateStarting, StateReconciling)

	partitions, err := c.reconcile(ctx)
	if err != nil {
		c.stop(StateReconciling)
		if ctx.Err() != nil || c.sw.Tripped() {
			return nil
		}

		return err
	}

	if per := c.cfg.BatchSizePerPartition; per > 0 {
		c.producer = c.newProducer(per * len(partitions))
		c.logger.Info("batch size scaled by partition count",
			"run_id", c.runID,
			"per_partition", per,
			"partitions", len(partitions),
			"batch_size", per*len(partitions),
		)
	}

	c.transitionState(StateReconciling, StateRunning)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.pool.Run(gctx, partitions)
	})

	loopErr := c.runRounds(gctx)

	c.transitionState(StateRunning, StateStopping)
	c.logger.Info("controller stopping",
		"run_id", c.runID,
		"round", c.Round(),
		"kill_switch", c.sw.Tripped(),
		"reason", c.stopReason(ctx),
	)
	if loopErr != nil {
		// Workers only watch the switch and the group context.
		c.sw.Trip("producer error")
	}

	waitErr := c.waitWorkers(g)

	if left := c.queue.Pending(); left > 0 {
		c.logger.Warn("items left unprocessed", "run_id", c.runID, "pending", left)
	}

	c.transitionState(StateStopping, StateStopped)
	c.logger.Info("controller stopped", "run_id", c.runID, "rounds", c.Round())

	return errors.Join(loopErr, waitErr)
}

// newProducer builds the round producer for the given batch size.
func (c *Controller) newProducer(batchSize int) *producer.Producer {
	return producer.New(c.source, c.queue, c.sw,
		producer.Config{BatchSize: batchSize, Mode: c.cfg.Mode},
		producer.WithLogger(c.logger),
		producer.WithMetrics(c.metrics),
		producer.WithClock(c.clock),
	)
}

// reconcile ensures the partition count and returns the partitions that get a worker.
// A kill switch trip stops partition creation between calls.
func (c *Controller) reconcile(ctx context.Context) ([]Partition, error) {
	rctx, cancel := c.sw.Context(ctx)
	defer cancel()

	res, err := c.reconciler.EnsurePartitionCount(rctx, c.cfg.TargetPartitions)
	if err != nil {
		if c.sw.Tripped() {
			c.logger.Info("partition reconciliation interrupted by kill switch",
				"run_id", c.runID,
				"created", len(res.Created),
				"reason", c.sw.Reason(),
			)

			return nil, err
		}
		c.logger.Error("partition reconciliation failed", "run_id", c.runID, "error", err)

		return nil, err
	}

	c.logger.Info("partitions reconciled",
		"run_id", c.runID,
		"existing", res.Existing,
		"created", len(res.Created),
		"failed", len(res.Failed),
		"total", len(res.Partitions),
	)

	partitions := res.Partitions
	if c.cfg.MaxWorkers > 0 && len(partitions) > c.cfg.MaxWorkers {
		c.logger.Info("more partitions than worker slots, partitions take turns",
			"partitions", len(partitions),
			"max_workers", c.cfg.MaxWorkers,
		)
	}
	if len(partitions) == 0 {
		c.logger.Error("no partitions to work on", "run_id", c.runID)

		return nil, ErrNoPartitions
	}

	c.mu.Lock()
	c.partitions = slices.Clone(partitions)
	c.mu.Unlock()

	return partitions, nil
}

// runRounds produces rounds until the switch trips or ctx ends.
func (c *Controller) runRounds(ctx context.Context) error {
	for {
		if c.sw.Tripped() || ctx.Err() != nil {
			return nil
		}

		round := c.round.Add(1)
		out, err := c.producer.RunRound(ctx)
		if err != nil {
			if errors.Is(err, ErrStopped) || ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("round %d: %w", round, err)
		}

		c.metrics.RecordRound(round, out.Fetched, out.Duration.Seconds())
		c.logger.Info("round completed",
			"run_id", c.runID,
			"round", round,
			"fetched", out.Fetched,
			"enqueued", out.Enqueued,
			"duration", out.Duration,
		)
		c.fireRoundCompleted(round, out.Fetched)

		pause := c.cfg.RoundInterval
		switch {
		case out.Err != nil:
			c.fireError(ctx, fmt.Errorf("round %d: fetch: %w", round, out.Err))
			pause = c.cfg.EmptyBackoff
		case out.Empty:
			c.logger.Debug("no items fetched, backing off", "round", round, "backoff", c.cfg.EmptyBackoff)
			pause = c.cfg.EmptyBackoff
		}

		c.sw.Sleep(ctx, c.clock, pause)
	}
}

// waitWorkers waits up to ShutdownTimeout for the worker pool to exit.
func (c *Controller) waitWorkers(g *errgroup.Group) error {
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	timer := c.clock.NewTimer(c.cfg.ShutdownTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			c.logger.Error("worker pool failed", "run_id", c.runID, "error", err)
		}

		return err
	case <-timer.C():
		c.logger.Error("workers did not stop in time",
			"run_id", c.runID,
			"timeout", c.cfg.ShutdownTimeout,
			"in_flight", c.queue.InFlight(),
		)

		return fmt.Errorf("workers still busy after %v: %w", c.cfg.ShutdownTimeout, context.DeadlineExceeded)
	}
}

// stop moves an unstarted run straight to Stopped.
func (c *Controller) stop(from State) {
	c.transitionState(from, StateStopping)
	c.transitionState(StateStopping, StateStopped)
}

func (c *Controller) stopReason(ctx context.Context) string {
	switch {
	case c.sw.Tripped():
		return "kill switch: " + c.sw.Reason()
	case ctx.Err() != nil:
		return "context: " + ctx.Err().Error()
	default:
		return "worker exited"
	}
}

// Kill trips the kill switch. Rounds stop at the next boundary and workers
// finish their in-flight item.
//
// Parameters:
//   - reason: Short description recorded in the logs
//
// Returns:
//   - bool: true if this call tripped the switch
func (c *Controller) Kill(reason string) bool {
	tripped := c.sw.Trip(reason)
	if tripped {
		c.logger.Info("kill switch tripped", "run_id", c.runID, "reason", reason)
	}

	return tripped
}

// KillSwitch returns the switch observed by the run.
func (c *Controller) KillSwitch() *KillSwitch {
	return c.sw
}

// RunID returns the identifier attached to this controller's log lines.
func (c *Controller) RunID() string {
	return c.runID
}

// Round returns the number of the current round, 0 before the first round.
func (c *Controller) Round() int64 {
	return c.round.Load()
}

// State returns the current controller state.
//
// Returns:
//   - State: Current state
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Partitions returns the partitions served by workers. Empty before
// reconciliation completes.
func (c *Controller) Partitions() []Partition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.partitions)
}

// Stats returns per-partition counters keyed by partition ID.
func (c *Controller) Stats() map[string]PartitionStats {
	return c.pool.Stats()
}

// WaitState waits for the controller to reach the expected state within the timeout period.
//
// The method returns a read-only channel that will receive exactly one value:
//   - nil if the expected state is reached within the timeout
//   - context.DeadlineExceeded if the timeout expires before reaching the state
//
// The channel is closed after sending the result, allowing safe use in select statements.
//
// Parameters:
//   - expectedState: The state to wait for
//   - timeout: Maximum duration to wait for the state
//
// Returns:
//   - <-chan error: A channel that receives the result (nil on success, error on timeout)
//
// Example:
//
//	go ctrl.Run(ctx)
//	if err := <-ctrl.WaitState(fanout.StateRunning, 10*time.Second); err != nil {
//	    log.Printf("controller did not start: %v", err)
//	}
func (c *Controller) WaitState(expectedState State, timeout time.Duration) <-chan error {
	ch := make(chan error, 1)

	go func() {
		defer close(ch)

		if c.State() == expectedState {
			ch <- nil
			return
		}

		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		timeoutTimer := time.NewTimer(timeout)
		defer timeoutTimer.Stop()

		for {
			select {
			case <-ticker.C:
				if c.State() == expectedState {
					ch <- nil
					return
				}
			case <-timeoutTimer.C:
				ch <- context.DeadlineExceeded
				return
			}
		}
	}()

	return ch
}

// transitionState transitions to a new state and triggers hooks.
func (c *Controller) transitionState(from, to State) {
	if !c.isValidTransition(from, to) {
		c.logger.Error("invalid state transition attempted",
			"from", from.String(),
			"to", to.String(),
		)

		return
	}

	if !c.state.CompareAndSwap(int32(from), int32(to)) { //nolint:gosec // State values are controlled enum
		c.logger.Error("state transition from unexpected state",
			"from", from.String(),
			"to", to.String(),
			"current", c.State().String(),
		)

		return
	}

	c.logger.Info("state transition",
		"from", from.String(),
		"to", to.String(),
		"run_id", c.runID,
	)

	ctx := c.hookContext()
	go func() {
		if err := c.hooks.OnStateChanged(ctx, from, to); err != nil {
			c.logger.Error("state change hook error", "from", from, "to", to, "error", err)
		}
	}()

	c.metrics.RecordStateTransition(from, to)
}

// isValidTransition validates that a state transition is allowed.
func (c *Controller) isValidTransition(from, to State) bool {
	validTransitions := map[State][]State{
		StateStarting:    {StateReconciling, StateStopping},
		StateReconciling: {StateRunning, StateStopping},
		StateRunning:     {StateStopping},
		StateStopping:    {StateStopped},
		StateStopped:     {}, // Terminal state
	}

	return slices.Contains(validTransitions[from], to)
}

func (c *Controller) hookContext() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.hookCtx
}

func (c *Controller) fireRoundCompleted(round int64, fetched int) {
	ctx := c.hookContext()
	go func() {
		if err := c.hooks.OnRoundCompleted(ctx, round, fetched); err != nil {
			c.logger.Error("round completed hook error", "round", round, "error", err)
		}
	}()
}

func (c *Controller) fireError(_ context.Context, cause error) {
	ctx := c.hookContext()
	go func() {
		if err := c.hooks.OnError(ctx, cause); err != nil {
			c.logger.Error("error hook error", "cause", cause, "error", err)
		}
	}()
}
