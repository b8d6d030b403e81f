// Package metrics exposes hub and transport counters in Prometheus format.
package metrics

import (
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wireboard"

// Metrics implements core.Observer on top of a private registry.
type Metrics struct {
	registry *prometheus.Registry

	applied       *prometheus.CounterVec
	applyDuration *prometheus.HistogramVec
	dropped       *prometheus.CounterVec
	connected     prometheus.Gauge
	connects      prometheus.Counter
	evictions     prometheus.Counter
	tapDropped    prometheus.Counter
}

// New registers every collector on a fresh registry. Process and Go
// runtime collectors are included when withRuntime is set.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		applied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "Session commands applied by the hub",
		}, []string{"kind"}),
		applyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_apply_duration_seconds",
			Help:      "Time from dequeue to fanout for applied commands",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"kind"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Inbound events that were neither applied nor relayed",
		}, []string{"kind", "reason"}),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Clients currently attached to the session",
		}),
		connects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Clients attached since start",
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_client_evictions_total",
			Help:      "Clients detached for not draining their outbound queue",
		}),
		tapDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tap_dropped_total",
			Help:      "Events the Redis tap could not queue or publish",
		}),
	}
}

func (m *Metrics) EventApplied(kind string, took time.Duration) {
	m.applied.WithLabelValues(kind).Inc()
	m.applyDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) EventDropped(kind, reason string) {
	m.dropped.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) ClientConnected() {
	m.connected.Inc()
	m.connects.Inc()
}

func (m *Metrics) ClientDisconnected() {
	m.connected.Dec()
}

func (m *Metrics) ClientEvicted() {
	m.evictions.Inc()
}

// TapDropped counts an event lost by the tap.
func (m *Metrics) TapDropped() {
	m.tapDropped.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() stdhttp.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
