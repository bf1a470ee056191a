package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTickIncrementsCorrectCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := New(reg)

	tel.RecordTick("aggregator", true)
	tel.RecordTick("aggregator", false)

	assert.Equal(t, 1.0, counterValue(t, tel.TickSuccess.WithLabelValues("aggregator")))
	assert.Equal(t, 1.0, counterValue(t, tel.TickFailure.WithLabelValues("aggregator")))
}

func TestSetQueueSizeIgnoresNegative(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := New(reg)

	tel.SetQueueSize("metrics", "raw", 5)
	tel.SetQueueSize("metrics", "raw", -1)

	assert.Equal(t, 5.0, gaugeValue(t, tel.QueueSize.WithLabelValues("metrics", "raw")))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}
