// Package wrap implements the pluggable MergedMetric -> WrappedMetric
// strategies (spec §4.3): SimpleWrapper and DatadogWrapper.
package wrap

import (
	"sort"

	"github.com/akatashev/chouette-iot/pkg/metrics"
)

// Wrapper turns a batch of MergedMetrics into dispatch-ready
// WrappedMetrics. Implementations never error: a metric this wrapper
// doesn't understand is simply dropped.
type Wrapper interface {
	WrapMetrics(merged []*metrics.MergedMetric) []*metrics.WrappedMetric
}

// values and timestamps read helpers shared by both wrappers.

func floatValues(values []interface{}) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := toFloat(v); ok {
			out = append(out, f)
		}
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func min(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func max(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// percentile implements the Python original's linear-interpolation
// percentile (spec §4.3, §8 scenario S5), intentionally hand-rolled
// rather than pulled from a stats library so its behavior matches the
// original exactly: idx=(n-1)*p; integral idx returns that element
// directly, otherwise interpolate between floor and ceil.
func percentile(values []float64, percent float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	idx := float64(len(sorted)-1) * percent
	if idx == float64(int64(idx)) {
		return sorted[int(idx)]
	}
	lower := int(idx)
	upper := lower + 1
	right := sorted[upper] * (idx - float64(lower))
	left := sorted[lower] * (float64(upper) - idx)
	return left + right
}
