package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes, used as the "outcome" label of alertrelay_requests_total.
const (
	OutcomeForwarded          = "forwarded"
	OutcomeRejected           = "rejected"
	OutcomeInvalidPayload     = "invalid_payload"
	OutcomeUnauthorized       = "unauthorized"
	OutcomeWebhookUnreachable = "webhook_unreachable"
	OutcomeTooLarge           = "too_large"
)

// Delivery results, used as the "result" label of the delivery histogram.
const (
	DeliveryOK          = "ok"
	DeliveryRejected    = "rejected"
	DeliveryUnreachable = "unreachable"
)

// Metrics holds the relay's collectors on a dedicated registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	webhookDuration *prometheus.HistogramVec
	rulesPerAlert   prometheus.Histogram
}

// New creates a Metrics with its own registry, including Go runtime,
// process and alertrelay_build_info collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector("alertrelay"),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertrelay_requests_total",
				Help: "Inbound alert requests by outcome",
			},
			[]string{"outcome"},
		),
		webhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alertrelay_webhook_duration_seconds",
				Help:    "Duration of webhook delivery attempts",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"result"},
		),
		rulesPerAlert: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "alertrelay_rules_per_alert",
				Help:    "Number of violated rules carried by each forwarded alert",
				Buckets: []float64{0, 1, 2, 5, 10, 25},
			},
		),
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Request counts one inbound request with the given outcome.
func (m *Metrics) Request(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

// Delivery records one webhook attempt.
func (m *Metrics) Delivery(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.webhookDuration.WithLabelValues(result).Observe(d.Seconds())
}

// Rules records how many rules an alert carried.
func (m *Metrics) Rules(n int) {
	if m == nil {
		return
	}
	m.rulesPerAlert.Observe(float64(n))
}
