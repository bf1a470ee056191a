package plugins

import (
	"context"

	"go.uber.org/zap"

	"github.com/akatashev/chouette-iot/pkg/metrics"
	"github.com/akatashev/chouette-iot/pkg/store"
)

// QueuePlugin reports the depth of each durable queue (SPEC_FULL
// supplemented feature: it lets operators see backlog growth — e.g. a
// Datadog outage piling up the wrapped metrics queue — without
// shelling into Redis).
type QueuePlugin struct {
	store  store.Store
	logger *zap.Logger
}

// NewQueuePlugin builds a QueuePlugin reading from the given Store.
func NewQueuePlugin(st store.Store, logger *zap.Logger) *QueuePlugin {
	return &QueuePlugin{store: st, logger: logger}
}

func (p *QueuePlugin) Name() string { return "queue" }

func (p *QueuePlugin) CollectStats(ctx context.Context) []*metrics.WrappedMetric {
	var out []*metrics.WrappedMetric
	for _, q := range []struct {
		dataType string
		wrapped  bool
	}{
		{"metrics", false},
		{"metrics", true},
		{"logs", false},
		{"logs", true},
	} {
		size := p.store.GetQueueSize(ctx, q.dataType, q.wrapped)
		if size < 0 {
			continue
		}
		kind := "raw"
		if q.wrapped {
			kind = "wrapped"
		}
		tags := []string{"data_type:" + q.dataType, "kind:" + kind}
		out = append(out, metrics.NewWrappedMetric("Chouette.queue.size", metrics.TypeGauge, float64(size), 0, tags, 0))
	}
	return out
}
