// Package metrics defines the Prometheus collectors for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledger_gateway"

// Metrics bundles the gateway's Prometheus collectors around a dedicated
// registry so tests can construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	pipelineOutcomes *prometheus.CounterVec

	sessionsActive  prometheus.Gauge
	eventsDelivered prometheus.Counter
	blocksDelivered prometheus.Counter

	queueDepth prometheus.Gauge
}

// New constructs a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"service", "method", "path"}),

		pipelineOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "outcomes_total",
			Help:      "Validation pipeline outcomes by request kind and result.",
		}, []string{"kind", "outcome"}),

		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "active_sessions",
			Help:      "Current number of live event subscription sessions.",
		}),
		eventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "delivered_total",
			Help:      "Total number of acknowledged event deliveries.",
		}),
		blocksDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "blocks",
			Name:      "delivered_total",
			Help:      "Total number of acknowledged block deliveries.",
		}),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "pending_transactions",
			Help:      "Transactions currently queued for consensus.",
		}),
	}

	m.registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.pipelineOutcomes,
		m.sessionsActive,
		m.eventsDelivered,
		m.blocksDelivered,
		m.queueDepth,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncrementInFlight records the start of an HTTP request.
func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }

// DecrementInFlight records the end of an HTTP request.
func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordOutcome records a pipeline outcome.
func (m *Metrics) RecordOutcome(kind, outcome string) {
	m.pipelineOutcomes.WithLabelValues(kind, outcome).Inc()
}

// SessionOpened records a new subscription session.
func (m *Metrics) SessionOpened() { m.sessionsActive.Inc() }

// SessionClosed records the end of a subscription session.
func (m *Metrics) SessionClosed() { m.sessionsActive.Dec() }

// EventDelivered records one acknowledged event delivery.
func (m *Metrics) EventDelivered() { m.eventsDelivered.Inc() }

// BlockDelivered records one acknowledged block delivery.
func (m *Metrics) BlockDelivered() { m.blocksDelivered.Inc() }

// SetQueueDepth records the current queue depth.
func (m *Metrics) SetQueueDepth(n int) { m.queueDepth.Set(float64(n)) }
