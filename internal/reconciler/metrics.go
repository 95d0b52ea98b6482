package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"inspector/internal/inspector"
)

const metricsNamespace = "consul_inspector"

// Metrics tracks reconciliation activity.
//
// The collectors are registered with the Registerer given to NewMetrics. A
// nil Registerer creates unregistered collectors, which is what tests and
// callers without a metrics endpoint use.
type Metrics struct {
	events          *prometheus.CounterVec
	registrations   prometheus.Counter
	deregistrations *prometheus.CounterVec
	failures        *prometheus.CounterVec
	entries         prometheus.Gauge
}

// NewMetrics creates the reconciler collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Container lifecycle events processed, by type.",
		}, []string{"type"}),
		registrations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "registrations_total",
			Help:      "Registry entries registered or updated.",
		}),
		deregistrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deregistrations_total",
			Help:      "Registry entries deregistered, by reason.",
		}, []string{"reason"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "registry_failures_total",
			Help:      "Failed registry operations, by operation.",
		}, []string{"operation"}),
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "entries",
			Help:      "Registry entries currently owned.",
		}),
	}
}

func (m *Metrics) recordEvent(t inspector.EventType) {
	m.events.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) recordRegistration() {
	m.registrations.Inc()
}

func (m *Metrics) recordDeregistration(reason string) {
	m.deregistrations.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordFailure(operation string) {
	m.failures.WithLabelValues(operation).Inc()
}

func (m *Metrics) setEntries(n int) {
	m.entries.Set(float64(n))
}
