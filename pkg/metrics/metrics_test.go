package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawMetricAsDictRejectsIncomplete(t *testing.T) {
	_, err := RawMetric{}.AsDict()
	assert.Error(t, err)
}

func TestMergedMetricIdentityIgnoresTagOrder(t *testing.T) {
	a := NewMergedMetric("app.requests", TypeCount, nil, nil, map[string]string{"host": "a", "env": "prod"}, 10)
	b := NewMergedMetric("app.requests", TypeCount, nil, nil, map[string]string{"env": "prod", "host": "a"}, 10)
	assert.Equal(t, a.Identity(), b.Identity())
}

func TestMergedMetricIdentityDistinguishesTags(t *testing.T) {
	a := NewMergedMetric("app.requests", TypeCount, nil, nil, map[string]string{"host": "a"}, 10)
	b := NewMergedMetric("app.requests", TypeCount, nil, nil, map[string]string{"host": "b"}, 10)
	assert.NotEqual(t, a.Identity(), b.Identity())
}

func TestMergeConcatenatesValues(t *testing.T) {
	a := NewMergedMetric("m", TypeGauge, []interface{}{1.0}, []float64{100}, nil, 10)
	b := NewMergedMetric("m", TypeGauge, []interface{}{2.0}, []float64{101}, nil, 10)
	merged := a.Merge(b)
	assert.Equal(t, []interface{}{1.0, 2.0}, merged.Values)
	assert.Equal(t, []float64{100, 101}, merged.Timestamps)
}

func TestMergePanicsOnIdentityMismatch(t *testing.T) {
	a := NewMergedMetric("m1", TypeGauge, nil, nil, nil, 10)
	b := NewMergedMetric("m2", TypeGauge, nil, nil, nil, 10)
	assert.Panics(t, func() { a.Merge(b) })
}

func TestWrappedMetricAsDictShape(t *testing.T) {
	w := NewWrappedMetric("app.requests", TypeGauge, 42, 100, []string{"host:a"}, 0)
	raw, err := w.AsDict()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, jsonc.Unmarshal(raw, &decoded))
	assert.Equal(t, "app.requests", decoded["metric"])
	assert.Equal(t, "gauge", decoded["type"])
	assert.Nil(t, decoded["interval"])

	points := decoded["points"].([]interface{})
	require.Len(t, points, 1)
	point := points[0].([]interface{})
	assert.Equal(t, float64(100), point[0])
	assert.Equal(t, float64(42), point[1])
}

func TestGroupRawBucketsByFlushIntervalAndMerges(t *testing.T) {
	flush := 10
	payloads := [][]byte{
		[]byte(`{"metric":"m","type":"count","timestamp":100,"value":1,"tags":{"a":"1"}}`),
		[]byte(`{"metric":"m","type":"count","timestamp":103,"value":2,"tags":{"a":"1"}}`),
		[]byte(`{"metric":"m","type":"count","timestamp":115,"value":3,"tags":{"a":"1"}}`),
		[]byte(`not json`),
		[]byte(`{"metric":"","type":"count","timestamp":100,"value":1}`),
	}

	buckets := GroupRaw(payloads, flush)
	require.Len(t, buckets, 2)

	first := buckets[10]
	require.Len(t, first, 1)
	for _, mm := range first {
		assert.Equal(t, []interface{}{1.0, 2.0}, mm.Values)
	}

	second := buckets[11]
	require.Len(t, second, 1)
	for _, mm := range second {
		assert.Equal(t, []interface{}{3.0}, mm.Values)
	}
}
