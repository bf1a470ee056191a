package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/akatashev/chouette-iot/pkg/metrics"
)

type stubPlugin struct {
	name  string
	stats []*metrics.WrappedMetric
}

func (s stubPlugin) Name() string { return s.name }
func (s stubPlugin) CollectStats(ctx context.Context) []*metrics.WrappedMetric {
	return s.stats
}

func TestRegistryBuildSkipsUnknownPlugins(t *testing.T) {
	r := NewRegistry()
	r.Register("host", func() Plugin { return stubPlugin{name: "host"} })

	plugins := r.Build([]string{"host", "ghost"}, zap.NewNop())
	require.Len(t, plugins, 1)
	assert.Equal(t, "host", plugins[0].Name())
}

func TestCollectorMergesAllPluginStats(t *testing.T) {
	a := stubPlugin{name: "a", stats: []*metrics.WrappedMetric{
		metrics.NewWrappedMetric("a.metric", metrics.TypeGauge, 1, 100, nil, 0),
	}}
	b := stubPlugin{name: "b", stats: []*metrics.WrappedMetric{
		metrics.NewWrappedMetric("b.metric", metrics.TypeGauge, 2, 100, nil, 0),
	}}

	c := New([]Plugin{a, b}, zap.NewNop())
	out := c.Collect(context.Background())
	assert.Len(t, out, 2)
}

func TestCollectorWithNoPlugins(t *testing.T) {
	c := New(nil, zap.NewNop())
	out := c.Collect(context.Background())
	assert.Empty(t, out)
}

type blockingPlugin struct {
	name     string
	inFlight *atomic.Int64
	peak     *atomic.Int64
}

func (b blockingPlugin) Name() string { return b.name }

func (b blockingPlugin) CollectStats(ctx context.Context) []*metrics.WrappedMetric {
	n := b.inFlight.Inc()
	for {
		peak := b.peak.Load()
		if n <= peak || b.peak.CAS(peak, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	b.inFlight.Dec()
	return nil
}

// TestCollectorRunsPluginsConcurrently guards the fan-out property: slow
// plugins must not serialize behind one another.
func TestCollectorRunsPluginsConcurrently(t *testing.T) {
	inFlight := atomic.NewInt64(0)
	peak := atomic.NewInt64(0)

	plugins := []Plugin{
		blockingPlugin{name: "a", inFlight: inFlight, peak: peak},
		blockingPlugin{name: "b", inFlight: inFlight, peak: peak},
		blockingPlugin{name: "c", inFlight: inFlight, peak: peak},
	}

	c := New(plugins, zap.NewNop())
	c.Collect(context.Background())

	assert.Equal(t, int64(3), peak.Load())
}
