package metrics

import (
	"testing"

	"github.com/arloliu/fanout/types"
	"github.com/stretchr/testify/require"
)

func TestNewNop(t *testing.T) {
	metrics := NewNop()

	require.NotNil(t, metrics)
	require.IsType(t, &NopMetrics{}, metrics)
}

func TestNopMetrics_AllMethods(t *testing.T) {
	metrics := NewNop()

	require.NotPanics(t, func() {
		metrics.RecordStateTransition(types.StateStarting, types.StateReconciling)
		metrics.RecordStateTransition(types.State(999), types.State(1000))
		metrics.RecordRound(1, 3000, 12.5)
		metrics.RecordFetch(0, false, 0.2)
		metrics.RecordQueueDepth(-1)
		metrics.RecordDrainWait(0)
		metrics.RecordItem("tenant-0-abc", "created", 0.05)
		metrics.RecordActiveWorkers(5)
		metrics.RecordPartitionCount(5)
		metrics.RecordPartitionCreate(true)
	})
}
