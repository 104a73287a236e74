// Package reconcile ensures a partition directory holds at least a target
// number of partitions.
package reconcile

import (
	"context"
	"fmt"

	"github.com/arloliu/fanout/internal/logging"
	"github.com/arloliu/fanout/internal/metrics"
	"github.com/arloliu/fanout/internal/paging"
	"github.com/arloliu/fanout/types"
)

// DefaultPrefix is the display name prefix for created partitions.
const DefaultPrefix = "tenant"

// Result reports one reconciliation.
type Result struct {
	// Existing is the partition count observed before creating any.
	Existing int

	// Created holds the partitions created during this call.
	Created []types.Partition

	// Failed holds the display names whose creation failed.
	Failed []string

	// Partitions is the authoritative list after reconciliation.
	Partitions []types.Partition
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithPrefix sets the display name prefix ("<prefix>-<index>").
func WithPrefix(prefix string) Option {
	return func(r *Reconciler) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithPartitionConfig sets the settings sent with every creation.
func WithPartitionConfig(cfg types.PartitionConfig) Option {
	return func(r *Reconciler) {
		r.partitionCfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l types.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithErrorHandler sets a callback for creation failures.
func WithErrorHandler(fn func(ctx context.Context, err error)) Option {
	return func(r *Reconciler) {
		r.onError = fn
	}
}

// Reconciler creates missing partitions in a directory.
type Reconciler struct {
	dir          types.PartitionDirectory
	prefix       string
	partitionCfg types.PartitionConfig

	logger  types.Logger
	metrics types.MetricsCollector
	onError func(ctx context.Context, err error)
}

// New creates a reconciler for dir.
func New(dir types.PartitionDirectory, opts ...Option) *Reconciler {
	r := &Reconciler{
		dir:          dir,
		prefix:       DefaultPrefix,
		partitionCfg: types.PartitionConfig{AllowPasswordSignup: true},
		logger:       logging.NewNop(),
		metrics:      metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ListAll returns every partition in the directory.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - []types.Partition: All partitions across all pages
//   - error: Listing error wrapping ErrListPartitions
func (r *Reconciler) ListAll(ctx context.Context) ([]types.Partition, error) {
	return paging.Partitions(ctx, r.dir)
}

// EnsurePartitionCount guarantees at least target partitions exist.
//
// When the directory already holds target or more partitions the listing is
// returned unchanged and nothing is created. Otherwise the deficit is created
// sequentially with names "<prefix>-<index>", index continuing from the
// existing count. A candidate name already used by an existing partition is
// skipped. Failed creations are logged and skipped, and the directory is
// listed again so the result reflects what the directory actually holds.
//
// Parameters:
//   - ctx: Context for cancellation
//   - target: Desired minimum partition count
//
// Returns:
//   - Result: Created, failed and final partitions
//   - error: Listing error wrapping ErrListPartitions
func (r *Reconciler) EnsurePartitionCount(ctx context.Context, target int) (Result, error) {
	existing, err := r.ListAll(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Existing: len(existing)}
	deficit := target - len(existing)
	if deficit <= 0 {
		res.Partitions = existing
		r.metrics.RecordPartitionCount(len(existing))
		r.logger.Info("partition count satisfied", "existing", len(existing), "target", target)

		return res, nil
	}

	r.logger.Info("creating partitions", "existing", len(existing), "target", target, "deficit", deficit)

	for _, name := range r.candidateNames(existing, deficit) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		p, err := r.dir.CreatePartition(ctx, name, r.partitionCfg)
		r.metrics.RecordPartitionCreate(err == nil)
		if err != nil {
			res.Failed = append(res.Failed, name)
			r.logger.Error("partition create failed", "name", name, "error", err)
			if r.onError != nil {
				r.onError(ctx, fmt.Errorf("%w %s: %w", types.ErrCreatePartition, name, err))
			}

			continue
		}
		res.Created = append(res.Created, p)
		r.logger.Info("partition created", "partition_id", p.ID, "name", name)
	}

	final, err := r.ListAll(ctx)
	if err != nil {
		return res, err
	}
	res.Partitions = final
	r.metrics.RecordPartitionCount(len(final))

	if len(final) < target {
		r.logger.Warn("partition count below target after reconciliation",
			"count", len(final), "target", target, "failed", len(res.Failed))
	}

	return res, nil
}

// candidateNames returns count names "<prefix>-<i>" for i starting at the
// existing count, skipping names already taken.
func (r *Reconciler) candidateNames(existing []types.Partition, count int) []string {
	taken := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		taken[p.DisplayName] = struct{}{}
	}

	names := make([]string, 0, count)
	for i := len(existing); len(names) < count; i++ {
		name := fmt.Sprintf("%s-%d", r.prefix, i)
		if _, dup := taken[name]; dup {
			continue
		}
		names = append(names, name)
	}

	return names
}
