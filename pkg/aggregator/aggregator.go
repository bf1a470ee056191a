// Package aggregator implements the periodic raw-metrics-to-wrapped-metrics
// pipeline (spec §4.4): cleanup outdated raw metrics, bucket the rest by
// flush interval, merge and wrap each bucket, store the wrapped result,
// and only then delete the raw records it came from.
package aggregator

import (
	"context"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/akatashev/chouette-iot/pkg/metrics"
	"github.com/akatashev/chouette-iot/pkg/store"
	"github.com/akatashev/chouette-iot/pkg/wrap"
)

// Config is the subset of agent configuration an Aggregator needs.
type Config struct {
	FlushInterval int // seconds; spec §6 AGGREGATE_INTERVAL
	TTL           time.Duration
}

// Aggregator drains the raw metrics queue into the wrapped one
// (grounded on chouette_iot.metrics._aggregator.MetricsAggregator).
type Aggregator struct {
	store   store.Store
	wrapper wrap.Wrapper
	cfg     Config
	logger  *zap.Logger
}

// New builds an Aggregator. A nil wrapper means "no MetricsWrapper
// configured" (spec §9 open question): Run then only performs cleanup
// and reports success without touching raw metrics, mirroring the
// Python original's early return.
func New(st store.Store, wrapper wrap.Wrapper, cfg Config, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: st, wrapper: wrapper, cfg: cfg, logger: logger}
}

// Run performs one full aggregation tick (spec §4.4 steps 1-8). It
// returns false if any bucket failed to fully process, but still
// attempts every other bucket rather than aborting the batch.
func (a *Aggregator) Run(ctx context.Context) (bool, error) {
	if err := a.store.CleanupOutdatedRecords(ctx, "metrics", false, a.cfg.TTL); err != nil {
		a.logger.Warn("cleanup of outdated raw metrics failed", zap.Error(err))
	}

	if a.wrapper == nil {
		a.logger.Warn("no metrics wrapper configured; raw metrics won't be aggregated")
		return true, nil
	}

	keys, err := a.store.CollectKeys(ctx, "metrics", false, 0)
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return true, nil
	}

	buckets := bucketKeys(keys, a.cfg.FlushInterval)
	a.logger.Info("separated metric keys into groups",
		zap.Int("keys", len(keys)), zap.Int("groups", len(buckets)), zap.Int("flush_interval", a.cfg.FlushInterval))

	bucketIndices := make([]int64, 0, len(buckets))
	for idx := range buckets {
		bucketIndices = append(bucketIndices, idx)
	}
	sort.Slice(bucketIndices, func(i, j int) bool { return bucketIndices[i] < bucketIndices[j] })

	var merr *multierror.Error
	allOK := true
	for _, idx := range bucketIndices {
		ok, err := a.processBucket(ctx, buckets[idx])
		if err != nil {
			merr = multierror.Append(merr, err)
		}
		if !ok {
			allOK = false
		}
	}
	return allOK, merr.ErrorOrNil()
}

// processBucket implements MetricsAggregator._process_metrics: collect,
// merge, wrap, store-wrapped, delete-raw, in that order, so a failure
// partway through never deletes raw data that hasn't been durably
// replaced yet (spec §8 property 1).
func (a *Aggregator) processBucket(ctx context.Context, keys []store.Key) (bool, error) {
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.ID
	}

	payloads, err := a.store.CollectValues(ctx, "metrics", false, ids)
	if err != nil {
		return false, err
	}

	grouped := metrics.GroupRaw(payloads, a.cfg.FlushInterval)
	merged := make([]*metrics.MergedMetric, 0)
	for _, group := range grouped {
		for _, mm := range group {
			merged = append(merged, mm)
		}
	}

	wrapped := a.wrapper.WrapMetrics(merged)
	a.logger.Info("merged raw metrics", zap.Int("raw", len(payloads)), zap.Int("merged", len(merged)))
	a.logger.Info("wrapped merged metrics", zap.Int("merged", len(merged)), zap.Int("wrapped", len(wrapped)))

	records := make([]store.Record, len(wrapped))
	for i, w := range wrapped {
		records[i] = w
	}

	if err := a.store.StoreRecords(ctx, "metrics", true, records); err != nil {
		a.logger.Warn("could not store wrapped metrics; raw metrics are not cleaned", zap.Error(err))
		return false, err
	}

	if err := a.store.DeleteRecords(ctx, "metrics", false, ids); err != nil {
		a.logger.Error("wrapped metrics stored but raw metrics not cleaned up; metrics may be duplicated", zap.Error(err))
		return false, err
	}
	return true, nil
}

// bucketKeys groups collected keys by flush-interval bucket, mirroring
// MetricsMerger.group_metric_keys.
func bucketKeys(keys []store.Key, flushInterval int) map[int64][]store.Key {
	buckets := make(map[int64][]store.Key)
	for _, k := range keys {
		bucket := int64(k.Timestamp) / int64(flushInterval)
		buckets[bucket] = append(buckets[bucket], k)
	}
	return buckets
}
