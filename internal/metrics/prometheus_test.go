package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/fanout/types"
)

func TestNewPrometheus_Defaults(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry(), "")
	require.Equal(t, "fanout", p.namespace)
}

func TestPrometheusCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordStateTransition(types.StateRunning, types.StateStopping)
	p.RecordRound(2, 3, 1.5)
	p.RecordFetch(3, true, 0.1)
	p.RecordFetch(0, false, 0.1)
	p.RecordQueueDepth(7)
	p.RecordDrainWait(0.5)
	p.RecordItem("t-1", "created", 0.02)
	p.RecordItem("t-1", "failed", 0.02)
	p.RecordItem("t-2", "created", 0.02)
	p.RecordActiveWorkers(2)
	p.RecordPartitionCount(5)
	p.RecordPartitionCreate(true)
	p.RecordPartitionCreate(false)

	require.InDelta(t, 1, testutil.ToFloat64(p.stateTransitions.WithLabelValues("Running", "Stopping")), 0)
	require.InDelta(t, float64(types.StateStopping), testutil.ToFloat64(p.currentState), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.roundsTotal), 0)
	require.InDelta(t, 2, testutil.ToFloat64(p.roundNumber), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.fetchTotal.WithLabelValues("success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.fetchTotal.WithLabelValues("failure")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(p.fetchedItems), 0)
	require.InDelta(t, 7, testutil.ToFloat64(p.queuePending), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.itemsTotal.WithLabelValues("t-1", "failed")), 0)
	require.Equal(t, 3, testutil.CollectAndCount(p.itemsTotal))
	require.InDelta(t, 2, testutil.ToFloat64(p.activeWorkers), 0)
	require.InDelta(t, 5, testutil.ToFloat64(p.partitions), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.partitionCreates.WithLabelValues("failure")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestPrometheusCollector_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "once")

	require.NotPanics(t, func() {
		p.RecordActiveWorkers(1)
		p.RecordActiveWorkers(2)
		p.RecordPartitionCount(3)
	})
}
