// Package metrics implements the runtime's per-method counters and
// duration histograms and its error-kind counters: a Prometheus side (scraped via /metrics, see
// pkg/transport/httpsse) and an OpenTelemetry metrics bridge (pushed via
// internal/telemetry's OTLP exporter), kept in sync behind one API so a
// caller records a request exactly once.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

func attrString(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Metrics holds every instrument the runtime emits, both the Prometheus
// vectors registered for scraping and their OTEL-bridge counterparts,
// following the same CounterVec/HistogramVec-per-concern shape contextd's
// pkg/prefetch.Metrics uses for its own rule-execution counters.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	sessionsActive  prometheus.Gauge

	otelRequests otelmetric.Int64Counter
	otelDuration otelmetric.Float64Histogram
	otelErrors   otelmetric.Int64Counter
}

// New constructs Metrics, registering its Prometheus instruments against
// reg (prometheus.NewRegistry() if nil -- never the global DefaultRegisterer,
// so a process can run more than one Metrics without a duplicate-collector
// panic) and building its OTEL instruments against meter.
func New(reg prometheus.Registerer, meter otelmetric.Meter) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gomcp_requests_total",
			Help: "Total number of JSON-RPC requests dispatched, by method and outcome.",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gomcp_request_duration_seconds",
			Help:    "JSON-RPC request handling duration in seconds, by method.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gomcp_errors_total",
			Help: "Total number of JSON-RPC error responses, by error kind.",
		}, []string{"kind"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomcp_sessions_active",
			Help: "Current number of active sessions.",
		}),
	}

	for _, c := range []prometheus.Collector{m.requestsTotal, m.requestDuration, m.errorsTotal, m.sessionsActive} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	var err error
	m.otelRequests, err = meter.Int64Counter("gomcp.requests",
		otelmetric.WithDescription("Total number of JSON-RPC requests dispatched"))
	if err != nil {
		return nil, err
	}
	m.otelDuration, err = meter.Float64Histogram("gomcp.request.duration",
		otelmetric.WithDescription("JSON-RPC request handling duration in seconds"),
		otelmetric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	m.otelErrors, err = meter.Int64Counter("gomcp.errors",
		otelmetric.WithDescription("Total number of JSON-RPC error responses"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRequest records one dispatched request's outcome and duration.
// status is "ok" or "error".
func (m *Metrics) RecordRequest(ctx context.Context, method, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, status).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())

	m.otelRequests.Add(ctx, 1, otelmetric.WithAttributes(
		attrString("method", method),
		attrString("status", status),
	))
	m.otelDuration.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(attrString("method", method)))
}

// RecordError records an error response keyed by its mcperr.Kind string
// (see pkg/mcperr.Kind.String()).
func (m *Metrics) RecordError(ctx context.Context, kind string) {
	m.errorsTotal.WithLabelValues(kind).Inc()
	m.otelErrors.Add(ctx, 1, otelmetric.WithAttributes(attrString("kind", kind)))
}

// SetActiveSessions reports the current session count.
func (m *Metrics) SetActiveSessions(n int) {
	m.sessionsActive.Set(float64(n))
}
