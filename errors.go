package fanout

import "github.com/arloliu/fanout/types"

// Sentinel errors returned by the Controller and its components.
var (
	ErrInvalidConfig              = types.ErrInvalidConfig
	ErrTargetExceedsCeiling       = types.ErrTargetExceedsCeiling
	ErrItemSourceRequired         = types.ErrItemSourceRequired
	ErrPartitionDirectoryRequired = types.ErrPartitionDirectoryRequired
	ErrEffectAdapterRequired      = types.ErrEffectAdapterRequired
	ErrAlreadyStarted             = types.ErrAlreadyStarted
	ErrNoPartitions               = types.ErrNoPartitions
	ErrWorkerDied                 = types.ErrWorkerDied
	ErrStopped                    = types.ErrStopped
	ErrListPartitions             = types.ErrListPartitions
	ErrCreatePartition            = types.ErrCreatePartition
	ErrTransient                  = types.ErrTransient
)
