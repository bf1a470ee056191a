// Package telemetry exposes the agent's own operational metrics —
// queue depths, tick health, dispatch counters — as live Prometheus
// gauges/counters (SPEC_FULL supplemented feature: the Go-native
// analogue of the teacher's comp/core/telemetry, enabled when
// SEND_SELF_METRICS is set).
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Telemetry holds the self-metrics this agent exposes about its own
// operation.
type Telemetry struct {
	QueueSize        *prometheus.GaugeVec
	TickSuccess      *prometheus.CounterVec
	TickFailure      *prometheus.CounterVec
	DispatchedRecords *prometheus.CounterVec
	DispatchedBytes  *prometheus.CounterVec
}

// New registers and returns a Telemetry bound to the given registerer.
func New(registerer prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		QueueSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chouette",
			Name:      "queue_size",
			Help:      "Number of records currently held in a durable queue.",
		}, []string{"data_type", "kind"}),
		TickSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chouette",
			Name:      "tick_success_total",
			Help:      "Number of successful ticks per component.",
		}, []string{"component"}),
		TickFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chouette",
			Name:      "tick_failure_total",
			Help:      "Number of failed ticks per component.",
		}, []string{"component"}),
		DispatchedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chouette",
			Name:      "dispatched_records_total",
			Help:      "Number of records successfully dispatched to Datadog.",
		}, []string{"data_type"}),
		DispatchedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chouette",
			Name:      "dispatched_bytes_total",
			Help:      "Compressed bytes successfully dispatched to Datadog.",
		}, []string{"data_type"}),
	}

	registerer.MustRegister(t.QueueSize, t.TickSuccess, t.TickFailure, t.DispatchedRecords, t.DispatchedBytes)
	return t
}

// RecordTick updates the success/failure counters for one component's
// tick outcome.
func (t *Telemetry) RecordTick(component string, ok bool) {
	if ok {
		t.TickSuccess.WithLabelValues(component).Inc()
	} else {
		t.TickFailure.WithLabelValues(component).Inc()
	}
}

// RecordDispatch updates the dispatch counters after a successful
// Sender run.
func (t *Telemetry) RecordDispatch(dataType string, records, bytes int) {
	t.DispatchedRecords.WithLabelValues(dataType).Add(float64(records))
	t.DispatchedBytes.WithLabelValues(dataType).Add(float64(bytes))
}

// SetQueueSize updates the queue-depth gauge for one (data_type, kind)
// pair; a negative size (the Store convention for "could not determine")
// is left unreported rather than clobbering the last known value.
func (t *Telemetry) SetQueueSize(dataType, kind string, size int) {
	if size < 0 {
		return
	}
	t.QueueSize.WithLabelValues(dataType, kind).Set(float64(size))
}
