// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/fanout/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	ctrl, err := fanout.NewController(&cfg, src, dir, eff, fanout.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// ControllerMetrics implementation

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.State) {}

// RecordRound discards the round metric.
func (n *NopMetrics) RecordRound(_ /* round */ int64, _ /* fetched */ int, _ /* duration */ float64) {}

// ProducerMetrics implementation

// RecordFetch discards the fetch metric.
func (n *NopMetrics) RecordFetch(_ /* items */ int, _ /* success */ bool, _ /* duration */ float64) {}

// RecordQueueDepth discards the queue depth metric.
func (n *NopMetrics) RecordQueueDepth(_ /* pending */ int) {}

// RecordDrainWait discards the drain wait metric.
func (n *NopMetrics) RecordDrainWait(_ /* duration */ float64) {}

// WorkerMetrics implementation

// RecordItem discards the item outcome metric.
func (n *NopMetrics) RecordItem(_ /* partitionID */, _ /* outcome */ string, _ /* duration */ float64) {}

// RecordActiveWorkers discards the active worker gauge.
func (n *NopMetrics) RecordActiveWorkers(_ /* count */ int) {}

// ReconcileMetrics implementation

// RecordPartitionCount discards the partition count gauge.
func (n *NopMetrics) RecordPartitionCount(_ /* count */ int) {}

// RecordPartitionCreate discards the partition create metric.
func (n *NopMetrics) RecordPartitionCreate(_ /* success */ bool) {}
