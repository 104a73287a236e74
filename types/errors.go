package types

import "errors"

// Sentinel errors for the fanout engine.
//
// Components wrap external errors with context using fmt.Errorf("%s: %w", msg, err)
// and callers match them with errors.Is.

// Controller errors - Public API errors returned by the Controller.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTargetExceedsCeiling is returned when the target partition count is above the safety ceiling.
	ErrTargetExceedsCeiling = errors.New("target partition count exceeds safety ceiling")

	// ErrItemSourceRequired is returned when the item source is nil.
	ErrItemSourceRequired = errors.New("item source is required")

	// ErrPartitionDirectoryRequired is returned when the partition directory is nil.
	ErrPartitionDirectoryRequired = errors.New("partition directory is required")

	// ErrEffectAdapterRequired is returned when the effect adapter is nil.
	ErrEffectAdapterRequired = errors.New("effect adapter is required")

	// ErrAlreadyStarted is returned when Run is called on a controller that already ran.
	ErrAlreadyStarted = errors.New("controller already started")

	// ErrNoPartitions is returned when reconciliation yields no partition to work on.
	ErrNoPartitions = errors.New("no partitions available")
)

// Queue errors.
var (
	// ErrNotInFlight is returned when MarkDone is called without a matching Dequeue.
	ErrNotInFlight = errors.New("no item in flight")

	// ErrQueueClosed is returned when enqueueing into a closed queue.
	ErrQueueClosed = errors.New("queue closed")
)

// Worker errors.
var (
	// ErrWorkerDied is returned when a partition worker exits abnormally.
	// Worker death is fatal to the run.
	ErrWorkerDied = errors.New("partition worker died")

	// ErrPoolAlreadyStarted is returned when Start is called twice on a pool.
	ErrPoolAlreadyStarted = errors.New("worker pool already started")
)

// Producer errors.
var (
	// ErrStopped is returned when a blocking operation is interrupted by the kill switch.
	ErrStopped = errors.New("stopped by kill switch")
)

// Reconciler and directory errors.
var (
	// ErrListPartitions is returned when the partition listing fails.
	ErrListPartitions = errors.New("failed to list partitions")

	// ErrCreatePartition is returned when a partition creation fails.
	ErrCreatePartition = errors.New("failed to create partition")

	// ErrPaginationLoop is returned when a directory repeats a continuation token.
	ErrPaginationLoop = errors.New("pagination token repeated")
)

// Adapter errors.
var (
	// ErrTransient marks an error as retryable by the adapters' internal retry loop.
	ErrTransient = errors.New("transient error")

	// ErrPrincipalExists is returned by adapters that surface "already exists" as an error.
	ErrPrincipalExists = errors.New("principal already exists")
)

// IsTransient reports whether err is marked as transient.
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if err wraps ErrTransient
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
