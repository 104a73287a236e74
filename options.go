package fanout

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"
	"k8s.io/utils/clock"

	"github.com/arloliu/fanout/internal/killswitch"
	"github.com/arloliu/fanout/internal/logging"
)

// KillSwitch is the cooperative stop signal shared by the controller, the
// producer and the partition workers.
type KillSwitch = killswitch.Switch

// NewKillSwitch creates an untripped kill switch.
//
// Example:
//
//	sw := fanout.NewKillSwitch()
//	ctrl, _ := fanout.NewController(&cfg, src, dir, eff, fanout.WithKillSwitch(sw))
//	go func() { <-sigCh; sw.Trip("signal") }()
func NewKillSwitch() *KillSwitch {
	return killswitch.New()
}

// WatchKillSwitch trips sw when key in the KV bucket is set to a true value
// ("true", "1", "yes" or "on"). It blocks until ctx ends or the switch trips.
//
// Example:
//
//	go fanout.WatchKillSwitch(ctx, kv, "kill", ctrl.KillSwitch(), logger)
//	// elsewhere: nats kv put fanout-control kill 1
func WatchKillSwitch(ctx context.Context, kv jetstream.KeyValue, key string, sw *KillSwitch, logger Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}

	return killswitch.WatchKV(ctx, kv, key, sw, logger)
}

// Option configures a Controller with optional dependencies.
type Option func(*controllerOptions)

// controllerOptions holds optional Controller configuration.
type controllerOptions struct {
	hooks      *Hooks
	metrics    MetricsCollector
	logger     Logger
	clock      clock.Clock
	killSwitch *KillSwitch
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewController
//
// Example:
//
//	hooks := &fanout.Hooks{
//	    OnRoundCompleted: func(ctx context.Context, round int64, fetched int) error {
//	        log.Printf("round %d fetched %d", round, fetched)
//	        return nil
//	    },
//	}
//	ctrl, _ := fanout.NewController(&cfg, src, dir, eff, fanout.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *controllerOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewController
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *controllerOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewController
//
// Example:
//
//	zl, _ := zap.NewProduction()
//	ctrl, _ := fanout.NewController(&cfg, src, dir, eff, fanout.WithLogger(logging.NewZap(zl)))
func WithLogger(logger Logger) Option {
	return func(o *controllerOptions) {
		o.logger = logger
	}
}

// WithClock sets the clock used for every sleep and timeout.
//
// Tests pass a k8s.io/utils/clock/testing.FakeClock.
func WithClock(c clock.Clock) Option {
	return func(o *controllerOptions) {
		o.clock = c
	}
}

// WithKillSwitch injects an externally owned kill switch.
//
// Without this option the Controller creates its own, reachable through Kill.
func WithKillSwitch(sw *KillSwitch) Option {
	return func(o *controllerOptions) {
		o.killSwitch = sw
	}
}
