// Package metrics defines the Raw / Merged / Wrapped record variants
// that flow through the aggregator, plus the merge/fold laws and the
// identity used to group raw samples (spec §3).
package metrics

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
)

var jsonc = jsoniter.ConfigCompatibleWithStandardLibrary

// Known wire/raw metric types (spec §3, §4.3).
const (
	TypeCount     = "count"
	TypeGauge     = "gauge"
	TypeRate      = "rate"
	TypeSet       = "set"
	TypeHistogram = "histogram"
)

// RawMetric is the external producer-submitted shape (spec §6):
// {"metric","type","timestamp","value","tags"}.
type RawMetric struct {
	Metric    string            `json:"metric"`
	Type      string            `json:"type"`
	Timestamp float64           `json:"timestamp"`
	Value     interface{}       `json:"value"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// RecordTimestamp satisfies store.Record: the raw sample's own timestamp
// orders and ages it out of the queue.
func (m RawMetric) RecordTimestamp() float64 {
	return m.Timestamp
}

// AsDict renders the record for durable storage (spec §4.2: "records
// whose asdict() fails are silently skipped").
func (m RawMetric) AsDict() ([]byte, error) {
	if m.Metric == "" || m.Type == "" {
		return nil, fmt.Errorf("metrics: raw metric missing metric/type")
	}
	if m.Timestamp == 0 {
		m.Timestamp = float64(time.Now().Unix())
	}
	return jsonc.Marshal(m)
}

// stringifyTags renders a tag map as a deterministically sorted list of
// "k:v" strings (spec §3: "Tag stringification must be deterministic and
// sorted", §8 property 8).
func stringifyTags(tags map[string]string) []string {
	if len(tags) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(tags))
	for k, v := range tags {
		pairs = append(pairs, fmt.Sprintf("%s:%s", k, v))
	}
	return lo.Uniq(sortedStrings(pairs))
}

func sortedStrings(s []string) []string {
	// insertion sort is plenty for tag-list sizes; avoids importing sort
	// just for this one call site while keeping the result deterministic.
	out := append([]string(nil), s...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// MergedMetric is the aggregator's internal grouping of raw samples
// sharing an identity (spec §3). MergedMetric instances are owned by the
// aggregator and never escape it.
type MergedMetric struct {
	Metric   string
	Type     string
	Values   []interface{}
	Timestamps []float64
	Tags     map[string]string
	Interval int

	// sTags is the sorted "k:v" rendering of Tags, computed once at
	// construction so Identity() and the wrappers share it.
	sTags []string
}

// NewMergedMetric builds a MergedMetric, deriving its sorted tag
// rendering and identity up front.
func NewMergedMetric(metric, typ string, values []interface{}, timestamps []float64, tags map[string]string, interval int) *MergedMetric {
	return &MergedMetric{
		Metric:     metric,
		Type:       typ,
		Values:     values,
		Timestamps: timestamps,
		Tags:       tags,
		Interval:   interval,
		sTags:      stringifyTags(tags),
	}
}

// SortedTags returns the deterministic "k:v" tag rendering.
func (m *MergedMetric) SortedTags() []string {
	return m.sTags
}

// Identity is the triple (name, type, sorted "k:v" tags) that determines
// which MergedMetrics may be merged (spec §3, glossary "Identity").
func (m *MergedMetric) Identity() string {
	return m.Metric + "\x00" + m.Type + "\x00" + strings.Join(m.sTags, ",")
}

// Merge folds two same-identity MergedMetrics, concatenating their
// values and timestamps (spec §8 property 3). It panics if the
// identities differ, mirroring the Python original's `raise ValueError`
// — callers in this package only ever merge metrics already grouped by
// Identity(), so this is an invariant violation, not an expected error.
func (m *MergedMetric) Merge(other *MergedMetric) *MergedMetric {
	if m.Identity() != other.Identity() {
		panic("metrics: cannot merge MergedMetrics with different identities")
	}
	return &MergedMetric{
		Metric:     m.Metric,
		Type:       m.Type,
		Values:     append(append([]interface{}{}, m.Values...), other.Values...),
		Timestamps: append(append([]float64{}, m.Timestamps...), other.Timestamps...),
		Tags:       m.Tags,
		Interval:   m.Interval,
		sTags:      m.sTags,
	}
}

// WrappedMetric is a Datadog-shaped wire point (spec §3, §6):
// {"metric","tags","points":[[ts,value]],"type","interval"?}.
type WrappedMetric struct {
	Metric   string
	Type     string
	Value    float64
	Timestamp float64
	Tags     []string
	Interval int // 0 means "absent" on the wire
}

// NewWrappedMetric stamps Timestamp with the current time if one isn't
// given, mirroring WrappedMetric.__init__'s `timestamp or time.time()`.
func NewWrappedMetric(metric, typ string, value float64, timestamp float64, tags []string, interval int) *WrappedMetric {
	if timestamp == 0 {
		timestamp = float64(time.Now().Unix())
	}
	return &WrappedMetric{
		Metric:    metric,
		Type:      typ,
		Value:     value,
		Timestamp: timestamp,
		Tags:      tags,
		Interval:  interval,
	}
}

type wrappedMetricWire struct {
	Metric   string        `json:"metric"`
	Tags     []string      `json:"tags"`
	Points   [][2]float64  `json:"points"`
	Type     string        `json:"type"`
	Interval int           `json:"interval,omitempty"`
}

// RecordTimestamp satisfies store.Record.
func (w *WrappedMetric) RecordTimestamp() float64 {
	return w.Timestamp
}

// AsDict renders the wire payload stored in the wrapped queue.
func (w *WrappedMetric) AsDict() ([]byte, error) {
	tags := w.Tags
	if tags == nil {
		tags = []string{}
	}
	wire := wrappedMetricWire{
		Metric: w.Metric,
		Tags:   tags,
		Points: [][2]float64{{w.Timestamp, w.Value}},
		Type:   w.Type,
	}
	if w.Interval != 0 {
		wire.Interval = w.Interval
	}
	return jsonc.Marshal(wire)
}
