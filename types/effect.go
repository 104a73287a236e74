package types

import "context"

// UpsertResult is the outcome of an idempotent principal creation.
//
// Together with a non-nil error it forms the three-way result
// created | already-exists | error.
type UpsertResult int

const (
	// UpsertCreated indicates the principal was newly created.
	UpsertCreated UpsertResult = iota

	// UpsertAlreadyExists indicates the principal already existed.
	// Callers treat this as success.
	UpsertAlreadyExists
)

// String returns the string representation of the result.
func (r UpsertResult) String() string {
	switch r {
	case UpsertCreated:
		return "created"
	case UpsertAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// EffectAdapter applies the per-item downstream effect inside a partition.
//
// Both calls are remote. Implementations should retry their own transient
// errors internally; the engine never re-delivers a failed item.
type EffectAdapter interface {
	// UpsertPrincipal creates the principal for item in the partition.
	//
	// Parameters:
	//   - ctx: Context bounded by the per-item timeout
	//   - partitionID: Target partition ID
	//   - item: Work item identifying the principal
	//
	// Returns:
	//   - UpsertResult: UpsertCreated or UpsertAlreadyExists
	//   - error: Non-nil on failure
	UpsertPrincipal(ctx context.Context, partitionID string, item WorkItem) (UpsertResult, error)

	// TriggerNotification sends the one-shot notification (e.g., password reset)
	// for the principal in the partition.
	//
	// Parameters:
	//   - ctx: Context bounded by the per-item timeout
	//   - partitionID: Target partition ID
	//   - item: Work item identifying the principal
	//
	// Returns:
	//   - error: Non-nil on failure
	TriggerNotification(ctx context.Context, partitionID string, item WorkItem) error
}
