package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "thumb"

// Toggle outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
	OutcomeNoop     = "noop"
)

// Metrics holds every collector the service reports. All methods are safe
// on a nil receiver so components can run without metrics.
type Metrics struct {
	toggles        *prometheus.CounterVec
	publishFailed  prometheus.Counter
	compensations  *prometheus.CounterVec
	partitions     *prometheus.CounterVec
	deltasApplied  prometheus.Counter
	evictions      prometheus.Counter
	syncDuration   prometheus.Histogram
	sweepDuration  prometheus.Histogram
	consumedEvents prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toggles_total",
			Help:      "Like and unlike attempts by outcome.",
		}, []string{"type", "outcome"}),
		publishFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Toggle events the producer failed to deliver.",
		}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Compensation runs after failed deliveries by outcome.",
		}, []string{"outcome"}),
		partitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_synced_total",
			Help:      "Claimed partition keys processed by the sync job by outcome.",
		}, []string{"outcome"}),
		deltasApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deltas_applied_total",
			Help:      "Per-item count deltas written to the durable store.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hotkey_evictions_total",
			Help:      "Keys displaced from the hot set and drained.",
		}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of one partition sync.",
			Buckets:   prometheus.DefBuckets,
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one reconciliation sweep.",
			Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300},
		}),
		consumedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Toggle events read from the event topic.",
		}),
	}

	reg.MustRegister(
		m.toggles, m.publishFailed, m.compensations, m.partitions, m.deltasApplied,
		m.evictions, m.syncDuration, m.sweepDuration, m.consumedEvents,
	)
	return m
}

func (m *Metrics) Toggle(eventType, outcome string) {
	if m != nil {
		m.toggles.WithLabelValues(eventType, outcome).Inc()
	}
}

func (m *Metrics) PublishFailed() {
	if m != nil {
		m.publishFailed.Inc()
	}
}

func (m *Metrics) Compensation(outcome string) {
	if m != nil {
		m.compensations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) PartitionSynced(outcome string, deltas int) {
	if m == nil {
		return
	}
	m.partitions.WithLabelValues(outcome).Inc()
	m.deltasApplied.Add(float64(deltas))
}

func (m *Metrics) Evicted(n int) {
	if m != nil {
		m.evictions.Add(float64(n))
	}
}

func (m *Metrics) ObserveSync(seconds float64) {
	if m != nil {
		m.syncDuration.Observe(seconds)
	}
}

func (m *Metrics) ObserveSweep(seconds float64) {
	if m != nil {
		m.sweepDuration.Observe(seconds)
	}
}

func (m *Metrics) EventsConsumed(n int) {
	if m != nil {
		m.consumedEvents.Add(float64(n))
	}
}
