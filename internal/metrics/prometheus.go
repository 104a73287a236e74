package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/fanout/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// Controller metrics
	stateTransitions *prometheus.CounterVec
	currentState     prometheus.Gauge
	roundsTotal      prometheus.Counter
	roundNumber      prometheus.Gauge
	roundItems       prometheus.Histogram
	roundDuration    prometheus.Histogram

	// Producer metrics
	fetchTotal    *prometheus.CounterVec
	fetchedItems  prometheus.Counter
	fetchLatency  prometheus.Histogram
	queuePending  prometheus.Gauge
	drainDuration prometheus.Histogram

	// Worker metrics
	itemsTotal    *prometheus.CounterVec
	itemDuration  *prometheus.HistogramVec
	activeWorkers prometheus.Gauge

	// Reconcile metrics
	partitions       prometheus.Gauge
	partitionCreates *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "fanout" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "fanout"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "controller",
			Name:      "state_transitions_total",
			Help:      "Total controller state transitions by source and target state.",
		}, []string{"from", "to"})
		p.currentState = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "controller",
			Name:      "state",
			Help:      "Current controller state (0=Starting .. 4=Stopped).",
		})
		p.roundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "controller",
			Name:      "rounds_total",
			Help:      "Total completed rounds.",
		})
		p.roundNumber = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "controller",
			Name:      "round",
			Help:      "Number of the last completed round.",
		})
		p.roundItems = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "controller",
			Name:      "round_items",
			Help:      "Items fetched per round.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8), // 1 .. 16384
		})
		p.roundDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "controller",
			Name:      "round_duration_seconds",
			Help:      "Round duration in seconds, excluding the inter-round sleep.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 3, 10), // 100ms .. ~33m
		})

		p.fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "producer",
			Name:      "fetches_total",
			Help:      "Total batch fetches by result (success, failure).",
		}, []string{"result"})
		p.fetchedItems = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "producer",
			Name:      "fetched_items_total",
			Help:      "Total items fetched from the item source.",
		})
		p.fetchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "producer",
			Name:      "fetch_latency_seconds",
			Help:      "Latency of batch fetches in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		})
		p.queuePending = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "pending_items",
			Help:      "Items queued or in flight.",
		})
		p.drainDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "producer",
			Name:      "drain_wait_seconds",
			Help:      "Time spent waiting for the queue to drain.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 3, 10),
		})

		p.itemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "items_total",
			Help:      "Processed items by partition and outcome (created, already_exists, failed).",
		}, []string{"partition", "outcome"})
		p.itemDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "item_duration_seconds",
			Help:      "Per-item processing time in seconds by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms .. ~5s
		}, []string{"outcome"})
		p.activeWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "worker",
			Name:      "active",
			Help:      "Number of running partition workers.",
		})

		p.partitions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "reconcile",
			Name:      "partitions",
			Help:      "Partitions known after the last reconciliation.",
		})
		p.partitionCreates = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reconcile",
			Name:      "partition_creates_total",
			Help:      "Partition creation attempts by result (success, failure).",
		}, []string{"result"})

		p.reg.MustRegister(
			p.stateTransitions,
			p.currentState,
			p.roundsTotal,
			p.roundNumber,
			p.roundItems,
			p.roundDuration,
			p.fetchTotal,
			p.fetchedItems,
			p.fetchLatency,
			p.queuePending,
			p.drainDuration,
			p.itemsTotal,
			p.itemDuration,
			p.activeWorkers,
			p.partitions,
			p.partitionCreates,
		)
	})
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}

	return "failure"
}

// RecordStateTransition counts the transition and updates the current state gauge.
func (p *PrometheusCollector) RecordStateTransition(from, to types.State) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	p.currentState.Set(float64(to))
}

// RecordRound records a completed round.
func (p *PrometheusCollector) RecordRound(round int64, fetched int, duration float64) {
	p.ensureRegistered()
	p.roundsTotal.Inc()
	p.roundNumber.Set(float64(round))
	p.roundItems.Observe(float64(fetched))
	p.roundDuration.Observe(duration)
}

// RecordFetch records a batch fetch attempt.
func (p *PrometheusCollector) RecordFetch(items int, success bool, duration float64) {
	p.ensureRegistered()
	p.fetchTotal.WithLabelValues(resultLabel(success)).Inc()
	p.fetchedItems.Add(float64(items))
	p.fetchLatency.Observe(duration)
}

// RecordQueueDepth sets the pending items gauge.
func (p *PrometheusCollector) RecordQueueDepth(pending int) {
	p.ensureRegistered()
	p.queuePending.Set(float64(pending))
}

// RecordDrainWait observes a drain wait duration.
func (p *PrometheusCollector) RecordDrainWait(duration float64) {
	p.ensureRegistered()
	p.drainDuration.Observe(duration)
}

// RecordItem records one processed item.
func (p *PrometheusCollector) RecordItem(partitionID string, outcome string, duration float64) {
	p.ensureRegistered()
	p.itemsTotal.WithLabelValues(partitionID, outcome).Inc()
	p.itemDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordActiveWorkers sets the active worker gauge.
func (p *PrometheusCollector) RecordActiveWorkers(count int) {
	p.ensureRegistered()
	p.activeWorkers.Set(float64(count))
}

// RecordPartitionCount sets the partition gauge.
func (p *PrometheusCollector) RecordPartitionCount(count int) {
	p.ensureRegistered()
	p.partitions.Set(float64(count))
}

// RecordPartitionCreate counts a partition creation attempt.
func (p *PrometheusCollector) RecordPartitionCreate(success bool) {
	p.ensureRegistered()
	p.partitionCreates.WithLabelValues(resultLabel(success)).Inc()
}
