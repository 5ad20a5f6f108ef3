// Package metrics exposes Prometheus instrumentation for sync workers and the status server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gmsync"

// Metrics holds the collectors registered for one process. A nil *Metrics records nothing.
type Metrics struct {
	events       *prometheus.CounterVec
	retries      *prometheus.CounterVec
	pushDuration *prometheus.HistogramVec
	pending      *prometheus.GaugeVec
	lastSuccess  *prometheus.GaugeVec

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Change events that reached a state, by integration and trigger.",
			},
			[]string{"integration", "trigger", "state"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Retried attempts, by integration and retried step.",
			},
			[]string{"integration", "step"},
		),
		pushDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "push_duration_seconds",
				Help:      "Handler push duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"integration", "trigger", "outcome"},
		),
		pending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_changes",
				Help:      "Unacknowledged rows in the change log.",
			},
			[]string{"integration"},
		),
		lastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successfully synced change.",
			},
			[]string{"integration"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of status server requests.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Status server request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		requestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of status server requests currently being processed.",
			},
		),
	}
}

// Event counts a change event reaching state.
func (m *Metrics) Event(integration, trigger, state string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(integration, trigger, state).Inc()
	if state == "succeeded" {
		m.lastSuccess.WithLabelValues(integration).Set(float64(time.Now().Unix()))
	}
}

// Retry counts one retried attempt of step (push, apply or ack).
func (m *Metrics) Retry(integration, step string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(integration, step).Inc()
}

// ObservePush records how long a handler push took.
func (m *Metrics) ObservePush(integration, trigger, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.pushDuration.WithLabelValues(integration, trigger, outcome).Observe(d.Seconds())
}

// SetPending sets the pending change count of an integration.
func (m *Metrics) SetPending(integration string, n int) {
	if m == nil {
		return
	}
	m.pending.WithLabelValues(integration).Set(float64(n))
}
