package fanout

import "github.com/arloliu/fanout/types"

// Re-export types from the types package.
//
// Internal packages depend on types without depending on the root fanout
// package, while users get a convenient fanout.Partition, fanout.Logger, etc.
type (
	State        = types.State
	Partition    = types.Partition
	WorkItem     = types.WorkItem
	Page         = types.Page
	UpsertResult = types.UpsertResult
	ProducerMode = types.ProducerMode

	PartitionConfig = types.PartitionConfig
)

// Re-export interfaces from the types package for convenience.
type (
	ItemSource         = types.ItemSource
	PartitionDirectory = types.PartitionDirectory
	EffectAdapter      = types.EffectAdapter
	MetricsCollector   = types.MetricsCollector
	Logger             = types.Logger
	Hooks              = types.Hooks
)

// Re-export State constants.
const (
	StateStarting    = types.StateStarting
	StateReconciling = types.StateReconciling
	StateRunning     = types.StateRunning
	StateStopping    = types.StateStopping
	StateStopped     = types.StateStopped
)

// Re-export UpsertResult and ProducerMode constants.
const (
	UpsertCreated       = types.UpsertCreated
	UpsertAlreadyExists = types.UpsertAlreadyExists

	ModeSyncDrain = types.ModeSyncDrain
	ModePipelined = types.ModePipelined
)
