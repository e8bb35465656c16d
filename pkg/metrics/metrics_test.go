package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(reg, noopmetric.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return m, reg
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
	}
	return total
}

func TestRecordRequestIncrementsCounterAndHistogram(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.RecordRequest(context.Background(), "tools/call", "ok", 5*time.Millisecond)

	assert.Equal(t, float64(1), counterValue(t, reg, "gomcp_requests_total"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var sawHistogram bool
	for _, f := range families {
		if f.GetName() == "gomcp_request_duration_seconds" {
			for _, metric := range f.GetMetric() {
				if h := metric.GetHistogram(); h != nil && h.GetSampleCount() == 1 {
					sawHistogram = true
				}
			}
		}
	}
	assert.True(t, sawHistogram)
}

func TestRecordErrorIncrementsCounter(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.RecordError(context.Background(), "method_not_found")
	assert.Equal(t, float64(1), counterValue(t, reg, "gomcp_errors_total"))
}

func TestSetActiveSessionsSetsGauge(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.SetActiveSessions(3)

	families, err := reg.Gather()
	require.NoError(t, err)
	var gaugeVal float64
	for _, f := range families {
		if f.GetName() == "gomcp_sessions_active" {
			for _, metric := range f.GetMetric() {
				gaugeVal = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, float64(3), gaugeVal)
}
