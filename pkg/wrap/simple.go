package wrap

import "github.com/akatashev/chouette-iot/pkg/metrics"

// SimpleWrapper understands only "count" metrics; everything else
// becomes an average gauge plus a ".count" sibling (spec §4.3, grounded
// on chouette_iot.metrics.wrappers.SimpleWrapper).
type SimpleWrapper struct{}

func (SimpleWrapper) WrapMetrics(merged []*metrics.MergedMetric) []*metrics.WrappedMetric {
	var out []*metrics.WrappedMetric
	for _, m := range merged {
		if m.Type == metrics.TypeCount {
			out = append(out, wrapSimpleCount(m)...)
		} else {
			out = append(out, wrapSimpleAverage(m)...)
		}
	}
	return out
}

func wrapSimpleCount(m *metrics.MergedMetric) []*metrics.WrappedMetric {
	values := floatValues(m.Values)
	return []*metrics.WrappedMetric{
		metrics.NewWrappedMetric(m.Metric, m.Type, sum(values), max(m.Timestamps), m.SortedTags(), m.Interval),
	}
}

func wrapSimpleAverage(m *metrics.MergedMetric) []*metrics.WrappedMetric {
	values := floatValues(m.Values)
	if len(values) == 0 {
		return nil
	}
	count := float64(len(values))
	average := sum(values) / count
	timestamp := max(m.Timestamps)
	tags := m.SortedTags()

	return []*metrics.WrappedMetric{
		metrics.NewWrappedMetric(m.Metric, metrics.TypeGauge, average, timestamp, tags, 0),
		metrics.NewWrappedMetric(m.Metric+".count", metrics.TypeCount, count, timestamp, tags, m.Interval),
	}
}
