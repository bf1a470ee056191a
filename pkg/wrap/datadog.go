package wrap

import (
	"fmt"
	"strings"

	"github.com/akatashev/chouette-iot/pkg/metrics"
)

// DatadogConfig mirrors DatadogWrapperConfig (spec §6: HISTOGRAM_AGGREGATES,
// HISTOGRAM_PERCENTILES).
type DatadogConfig struct {
	HistogramAggregates  []string
	HistogramPercentiles []float64
}

// DatadogWrapper reproduces the Datadog Agent's own metric-type
// semantics (spec §4.3), grounded on
// chouette_iot.metrics.wrappers.DatadogWrapper.
type DatadogWrapper struct {
	cfg DatadogConfig
}

// NewDatadogWrapper builds a DatadogWrapper, applying the spec §6
// defaults when the config is zero-valued.
func NewDatadogWrapper(cfg DatadogConfig) *DatadogWrapper {
	if len(cfg.HistogramAggregates) == 0 {
		cfg.HistogramAggregates = []string{"max", "median", "avg", "count"}
	}
	if len(cfg.HistogramPercentiles) == 0 {
		cfg.HistogramPercentiles = []float64{0.95}
	}
	return &DatadogWrapper{cfg: cfg}
}

func (w *DatadogWrapper) WrapMetrics(merged []*metrics.MergedMetric) []*metrics.WrappedMetric {
	var out []*metrics.WrappedMetric
	for _, m := range merged {
		out = append(out, w.wrapOne(m)...)
	}
	return out
}

func (w *DatadogWrapper) wrapOne(m *metrics.MergedMetric) []*metrics.WrappedMetric {
	switch m.Type {
	case metrics.TypeCount:
		return w.wrapCount(m)
	case metrics.TypeRate:
		return w.wrapRate(m)
	case metrics.TypeGauge:
		return w.wrapGauge(m)
	case metrics.TypeSet:
		return w.wrapSet(m)
	case metrics.TypeHistogram:
		return w.wrapHistogram(m)
	default:
		return nil
	}
}

func (w *DatadogWrapper) wrapCount(m *metrics.MergedMetric) []*metrics.WrappedMetric {
	values := floatValues(m.Values)
	return []*metrics.WrappedMetric{
		metrics.NewWrappedMetric(m.Metric, m.Type, sum(values), min(m.Timestamps), m.SortedTags(), m.Interval),
	}
}

func (w *DatadogWrapper) wrapRate(m *metrics.MergedMetric) []*metrics.WrappedMetric {
	values := floatValues(m.Values)
	rate := sum(values) / float64(m.Interval)
	return []*metrics.WrappedMetric{
		metrics.NewWrappedMetric(m.Metric, m.Type, rate, min(m.Timestamps), m.SortedTags(), m.Interval),
	}
}

func (w *DatadogWrapper) wrapGauge(m *metrics.MergedMetric) []*metrics.WrappedMetric {
	values := floatValues(m.Values)
	if len(values) == 0 || len(m.Timestamps) != len(values) {
		return nil
	}
	latestIdx := 0
	for i, ts := range m.Timestamps {
		if ts > m.Timestamps[latestIdx] {
			latestIdx = i
		}
	}
	return []*metrics.WrappedMetric{
		metrics.NewWrappedMetric(m.Metric, m.Type, values[latestIdx], min(m.Timestamps), m.SortedTags(), 0),
	}
}

// wrapSet treats each MergedMetric value as itself a slice (a batch of
// unique elements reported at once) and counts the distinct union
// across the whole bucket (spec §4.3 "set").
func (w *DatadogWrapper) wrapSet(m *metrics.MergedMetric) []*metrics.WrappedMetric {
	seen := make(map[string]struct{})
	for _, v := range m.Values {
		elems, ok := v.([]interface{})
		if !ok {
			return nil
		}
		for _, e := range elems {
			seen[fmt.Sprintf("%v", e)] = struct{}{}
		}
	}
	return []*metrics.WrappedMetric{
		metrics.NewWrappedMetric(m.Metric, metrics.TypeCount, float64(len(seen)), min(m.Timestamps), m.SortedTags(), m.Interval),
	}
}

func (w *DatadogWrapper) wrapHistogram(m *metrics.MergedMetric) []*metrics.WrappedMetric {
	values := floatValues(m.Values)
	if len(values) == 0 {
		return nil
	}
	interval := float64(m.Interval)
	timestamp := min(m.Timestamps)
	tags := m.SortedTags()
	name := m.Metric
	count := float64(len(values))

	type candidate struct {
		metric string
		typ    string
		value  float64
		interval int
	}

	candidates := []candidate{
		{name + ".avg", metrics.TypeGauge, sum(values) / count, 0},
		{name + ".count", metrics.TypeRate, count / interval, m.Interval},
		{name + ".sum", metrics.TypeGauge, sum(values), 0},
		{name + ".min", metrics.TypeGauge, min(values), 0},
		{name + ".max", metrics.TypeGauge, max(values), 0},
		{name + ".median", metrics.TypeGauge, percentile(values, 0.5), 0},
	}
	for _, p := range w.cfg.HistogramPercentiles {
		candidates = append(candidates, candidate{
			metric: fmt.Sprintf("%s.%dpercentile", name, int(p*100)),
			typ:    metrics.TypeGauge,
			value:  percentile(values, p),
		})
	}

	aggregates := make(map[string]struct{}, len(w.cfg.HistogramAggregates))
	for _, a := range w.cfg.HistogramAggregates {
		aggregates[a] = struct{}{}
	}

	var out []*metrics.WrappedMetric
	for _, c := range candidates {
		isPercentile := strings.Contains(c.metric, "percentile")
		if !isPercentile {
			last := strings.LastIndex(c.metric, ".")
			if _, ok := aggregates[c.metric[last+1:]]; !ok {
				continue
			}
		}
		out = append(out, metrics.NewWrappedMetric(c.metric, c.typ, c.value, timestamp, tags, c.interval))
	}
	return out
}
