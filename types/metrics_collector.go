package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from worker and producer goroutines and must be
// thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	ControllerMetrics
	ProducerMetrics
	WorkerMetrics
	ReconcileMetrics
}

// ControllerMetrics defines metrics for run controller operations.
type ControllerMetrics interface {
	// RecordStateTransition records a controller state transition.
	RecordStateTransition(from, to State)

	// RecordRound records a completed round.
	//
	// Parameters:
	//   - round: Round number (starting at 1)
	//   - fetched: Number of items fetched in the round
	//   - duration: Round duration in seconds
	RecordRound(round int64, fetched int, duration float64)
}

// ProducerMetrics defines metrics for the batch producer and the work queue.
type ProducerMetrics interface {
	// RecordFetch records a batch fetch attempt.
	//
	// Parameters:
	//   - items: Number of items returned (0 on failure)
	//   - success: false if the source returned an error
	//   - duration: Fetch latency in seconds
	RecordFetch(items int, success bool, duration float64)

	// RecordQueueDepth sets the number of pending (queued + in-flight) items.
	RecordQueueDepth(pending int)

	// RecordDrainWait records how long the producer waited for the queue to drain.
	RecordDrainWait(duration float64)
}

// WorkerMetrics defines metrics for per-partition workers.
type WorkerMetrics interface {
	// RecordItem records the outcome of one processed item.
	//
	// Parameters:
	//   - partitionID: Partition that processed the item
	//   - outcome: "created", "already_exists" or "failed"
	//   - duration: Processing time in seconds
	RecordItem(partitionID string, outcome string, duration float64)

	// RecordActiveWorkers sets the current number of running workers.
	RecordActiveWorkers(count int)
}

// ReconcileMetrics defines metrics for partition reconciliation.
type ReconcileMetrics interface {
	// RecordPartitionCount sets the number of partitions known after reconciliation.
	RecordPartitionCount(count int)

	// RecordPartitionCreate records one partition creation attempt.
	RecordPartitionCreate(success bool)
}
