// Package metrics exposes Prometheus instrumentation for the document graph:
// registry activity, undo history and storage flushes.
//
// A nil *Metrics is valid and records nothing, so library code can call the
// methods unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "docgraph"

// Metrics holds the collectors registered for one process or test.
type Metrics struct {
	registrations *prometheus.CounterVec
	registered    prometheus.Gauge
	undoOps       *prometheus.CounterVec
	invalidations prometheus.Counter
	flushes       *prometheus.CounterVec
	flushDuration prometheus.Histogram
	pendingWrites prometheus.Gauge
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests so counts start at zero.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Objects registered and unregistered with a context",
		}, []string{"op"}),
		registered: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_objects",
			Help:      "Objects currently registered with a context",
		}),
		undoOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undo_operations_total",
			Help:      "Undo stack operations by kind",
		}, []string{"op"}),
		invalidations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undo_invalidations_total",
			Help:      "Undo histories discarded after an out-of-band change",
		}),
		flushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_flushes_total",
			Help:      "Document writes handed to a sink",
		}, []string{"result"}),
		flushDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_flush_duration_seconds",
			Help:      "Duration of sink writes",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		pendingWrites: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "storage_pending_writes",
			Help:      "Mutations not yet written to the sink",
		}),
	}
}

// ObjectRegistered records a context registration.
func (m *Metrics) ObjectRegistered() {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues("register").Inc()
	m.registered.Inc()
}

// ObjectUnregistered records a context unregistration.
func (m *Metrics) ObjectUnregistered() {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues("unregister").Inc()
	m.registered.Dec()
}

// UndoOp records an undo stack operation: "push", "merge", "undo", "redo" or
// "clear".
func (m *Metrics) UndoOp(op string) {
	if m == nil {
		return
	}
	m.undoOps.WithLabelValues(op).Inc()
}

// StackInvalidated records a discarded undo history.
func (m *Metrics) StackInvalidated() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}

// Flush records a sink write and how long it took.
func (m *Metrics) Flush(success bool, seconds float64) {
	if m == nil {
		return
	}
	result := "ok"
	if !success {
		result = "error"
	}
	m.flushes.WithLabelValues(result).Inc()
	m.flushDuration.Observe(seconds)
}

// PendingWrites sets the number of mutations waiting for a flush.
func (m *Metrics) PendingWrites(n int) {
	if m == nil {
		return
	}
	m.pendingWrites.Set(float64(n))
}
