// Package sender dispatches durably-queued wrapped records to Datadog
// over HTTP, at-least-once (spec §4.5): never delete until the remote
// end has acknowledged receipt.
package sender

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/akatashev/chouette-iot/pkg/metrics"
	"github.com/akatashev/chouette-iot/pkg/store"
)

var jsonc = jsoniter.ConfigCompatibleWithStandardLibrary

// Strategy is the per-data-type behavior a Sender delegates to: what
// endpoint to hit, how to turn a single stored payload into a
// dispatch-ready record, and how to envelope a batch of them into the
// final wire body. Metrics and logs each get their own Strategy (spec's
// supplemented "shared generic Sender" design).
type Strategy interface {
	// DataType names the queue this strategy drains, e.g. "metrics".
	DataType() string
	// Endpoint is the Datadog API path this strategy posts to, e.g.
	// "v1/series".
	Endpoint() string
	// PrepareRecord decodes one stored payload and merges in global
	// tags/host. A false second return means the payload was malformed
	// and should be dropped (mirrors add_global_tags' None return).
	PrepareRecord(payload []byte, globalTags []string, host string) (map[string]interface{}, bool)
	// Envelope wraps a batch of prepared records into the final
	// top-level JSON body Datadog expects.
	Envelope(records []map[string]interface{}) (interface{}, error)
}

// Config is the subset of agent configuration a Sender needs.
type Config struct {
	APIKey          string
	DatadogURL      string
	GlobalTags      []string
	Host            string
	TTL             time.Duration
	BulkSize        int
	ReleaseInterval time.Duration
	SendSelfMetrics bool
}

// Sender drains one durable wrapped queue and dispatches it to Datadog,
// deleting it only once the HTTP call is acknowledged (spec §4.5, §8
// property 2).
type Sender struct {
	strategy Strategy
	store    store.Store
	cfg      Config
	client   *http.Client
	logger   *zap.Logger

	selfDispatched func(n, bytes int) // optional self-metrics hook
}

// New builds a Sender for the given Strategy.
func New(strategy Strategy, st store.Store, cfg Config, logger *zap.Logger) *Sender {
	return &Sender{
		strategy: strategy,
		store:    st,
		cfg:      cfg,
		client:   &http.Client{Timeout: time.Duration(float64(cfg.ReleaseInterval) * 0.8)},
		logger:   logger,
	}
}

// OnSelfDispatched registers a hook invoked with the number of records
// and compressed bytes dispatched on each successful send, for the
// supplemented self-metrics feature (SPEC_FULL §Domain stack).
func (s *Sender) OnSelfDispatched(fn func(n, bytes int)) {
	s.selfDispatched = fn
}

// Run performs one full dispatch cycle: cleanup, collect, dispatch,
// delete-on-success (spec §4.5 steps 1-5). It returns whether the cycle
// fully succeeded; a false return means data was left in the queue for
// the next tick to retry, never silently dropped.
func (s *Sender) Run(ctx context.Context) (bool, error) {
	dataType := s.strategy.DataType()

	if err := s.store.CleanupOutdatedRecords(ctx, dataType, true, s.cfg.TTL); err != nil {
		s.logger.Warn("cleanup of outdated records failed", zap.String("data_type", dataType), zap.Error(err))
	}

	keys, err := s.store.CollectKeys(ctx, dataType, true, s.cfg.BulkSize)
	if err != nil {
		return false, fmt.Errorf("sender: collect keys: %w", err)
	}
	if len(keys) == 0 {
		s.logger.Debug("nothing to dispatch", zap.String("data_type", dataType))
		return true, nil
	}

	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.ID
	}

	payloads, err := s.store.CollectValues(ctx, dataType, true, ids)
	if err != nil {
		return false, fmt.Errorf("sender: collect values: %w", err)
	}

	records := make([]map[string]interface{}, 0, len(payloads))
	for _, payload := range payloads {
		rec, ok := s.strategy.PrepareRecord(payload, s.cfg.GlobalTags, s.cfg.Host)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	dispatched, size, err := s.dispatch(ctx, records)
	if err != nil {
		s.logger.Error("dispatch failed", zap.String("data_type", dataType), zap.Error(err))
	}

	if !dispatched {
		s.logger.Warn("records were neither dispatched nor cleaned", zap.String("data_type", dataType), zap.Int("count", len(ids)))
		return false, nil
	}

	if s.cfg.SendSelfMetrics {
		s.sendSelfMetrics(ctx, dataType, len(ids), size)
	}

	if err := s.store.DeleteRecords(ctx, dataType, true, ids); err != nil {
		s.logger.Error("records were dispatched but not cleaned up", zap.String("data_type", dataType), zap.Error(err))
		return false, err
	}

	if s.selfDispatched != nil {
		s.selfDispatched(len(ids), size)
	}
	s.logger.Info("dispatched records", zap.String("data_type", dataType), zap.Int("count", len(ids)), zap.Int("bytes", size))
	return true, nil
}

// sendSelfMetrics mirrors MetricsSender._send_self_metrics (spec §4.5
// step 10, and step 6's "chouette.queued.metrics" gauge): it stores the
// dispatch's own counters as RawMetrics through the raw metrics
// pipeline, so they flow through the normal aggregate/dispatch cycle
// like any other metric instead of bypassing it as a side channel.
func (s *Sender) sendSelfMetrics(ctx context.Context, dataType string, n, compressedSize int) {
	now := float64(time.Now().Unix())
	selfMetrics := []store.Record{
		metrics.RawMetric{
			Metric:    fmt.Sprintf("chouette.dispatched.%s.number", dataType),
			Type:      metrics.TypeCount,
			Timestamp: now,
			Value:     float64(n),
		},
		metrics.RawMetric{
			Metric:    fmt.Sprintf("chouette.dispatched.%s.bytes", dataType),
			Type:      metrics.TypeCount,
			Timestamp: now,
			Value:     float64(compressedSize),
		},
	}

	queueSize := s.store.GetQueueSize(ctx, dataType, true)
	if readyToDispatch := queueSize - n; readyToDispatch > 0 {
		selfMetrics = append(selfMetrics, metrics.RawMetric{
			Metric:    fmt.Sprintf("chouette.queued.%s", dataType),
			Type:      metrics.TypeGauge,
			Timestamp: now,
			Value:     float64(readyToDispatch),
		})
	}

	if err := s.store.StoreRecords(ctx, "metrics", false, selfMetrics); err != nil {
		s.logger.Warn("could not store self metrics", zap.String("data_type", dataType), zap.Error(err))
	}
}

// dispatch envelopes, compresses and POSTs a batch of prepared records,
// returning whether Datadog accepted it (200/202) and the compressed
// size for self-metrics.
func (s *Sender) dispatch(ctx context.Context, records []map[string]interface{}) (bool, int, error) {
	envelope, err := s.strategy.Envelope(records)
	if err != nil {
		return false, 0, fmt.Errorf("sender: envelope: %w", err)
	}

	body, err := jsonc.Marshal(envelope)
	if err != nil {
		return false, 0, fmt.Errorf("sender: marshal envelope: %w", err)
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(body); err != nil {
		return false, 0, fmt.Errorf("sender: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return false, 0, fmt.Errorf("sender: compress: %w", err)
	}

	endpoint := s.cfg.DatadogURL + "/" + s.strategy.Endpoint()
	u, err := url.Parse(endpoint)
	if err != nil {
		return false, 0, fmt.Errorf("sender: parse url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", s.cfg.APIKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(compressed.Bytes()))
	if err != nil {
		return false, 0, fmt.Errorf("sender: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "deflate")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, 0, fmt.Errorf("sender: http post: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return false, compressed.Len(), fmt.Errorf("sender: unexpected response %d", resp.StatusCode)
	}
	return true, compressed.Len(), nil
}
