// Package supervisor wires together configuration, storage, the
// aggregator, sender(s) and collector into the three independent
// fixed-rate schedules spec §4.7 describes, and owns their shutdown.
package supervisor

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/akatashev/chouette-iot/internal/config"
	"github.com/akatashev/chouette-iot/pkg/aggregator"
	"github.com/akatashev/chouette-iot/pkg/collector"
	"github.com/akatashev/chouette-iot/pkg/collector/plugins"
	"github.com/akatashev/chouette-iot/pkg/scheduler"
	"github.com/akatashev/chouette-iot/pkg/sender"
	"github.com/akatashev/chouette-iot/pkg/store"
	"github.com/akatashev/chouette-iot/pkg/telemetry"
	"github.com/akatashev/chouette-iot/pkg/wrap"
)

// Supervisor owns every long-lived component and the three scheduled
// ticks driving them (spec §4.7: collector/capture_interval,
// aggregator/aggregate_interval, sender(s)/release_interval).
type Supervisor struct {
	cfg   *config.Config
	store store.Store

	scheduler *scheduler.Scheduler
	collector *collector.Collector
	aggregator *aggregator.Aggregator
	metricsSender *sender.Sender
	logsSender    *sender.Sender
	telemetry     *telemetry.Telemetry

	logger *zap.Logger

	cancellables []*scheduler.Cancellable
}

// New builds a fully-wired Supervisor, ready to Start.
func New(cfg *config.Config, logger *zap.Logger) (*Supervisor, error) {
	st, err := store.New(cfg.StorageType, cfg.RedisHost, cfg.RedisPort, cfg.SQLitePath, logger)
	if err != nil {
		return nil, err
	}

	wrapper := wrap.New(cfg.MetricsWrapper, wrap.DatadogConfig{
		HistogramAggregates:  cfg.HistogramAggregates,
		HistogramPercentiles: cfg.HistogramPercentiles,
	})

	agg := aggregator.New(st, wrapper, aggregator.Config{
		FlushInterval: int(cfg.AggregateInterval.Seconds()),
		TTL:           cfg.MetricTTL,
	}, logger)

	metricsSender := sender.New(sender.MetricsStrategy{}, st, sender.Config{
		APIKey:          cfg.APIKey,
		DatadogURL:      cfg.DatadogURL,
		GlobalTags:      cfg.GlobalTags,
		Host:            cfg.Host,
		TTL:             cfg.MetricTTL,
		BulkSize:        cfg.MetricsBulkSize,
		ReleaseInterval: cfg.ReleaseInterval,
		SendSelfMetrics: cfg.SendSelfMetrics,
	}, logger)

	logsSender := sender.New(sender.LogsStrategy{}, st, sender.Config{
		APIKey:          cfg.APIKey,
		DatadogURL:      cfg.DatadogLogsURL,
		GlobalTags:      cfg.GlobalTags,
		Host:            cfg.Host,
		TTL:             cfg.LogTTL,
		BulkSize:        cfg.LogsBulkSize,
		ReleaseInterval: cfg.ReleaseInterval,
		SendSelfMetrics: cfg.SendSelfMetrics,
	}, logger)

	registry := collector.NewRegistry()
	registry.Register("host", func() collector.Plugin { return plugins.NewHostPlugin(nil, logger) })
	registry.Register("queue", func() collector.Plugin { return plugins.NewQueuePlugin(st, logger) })
	col := collector.New(registry.Build(cfg.CollectorPlugins, logger), logger)

	var tel *telemetry.Telemetry
	if cfg.SendSelfMetrics {
		tel = telemetry.New(prometheus.DefaultRegisterer)
		metricsSender.OnSelfDispatched(func(n, bytes int) { tel.RecordDispatch("metrics", n, bytes) })
		logsSender.OnSelfDispatched(func(n, bytes int) { tel.RecordDispatch("logs", n, bytes) })
	}

	return &Supervisor{
		cfg:           cfg,
		store:         st,
		scheduler:     scheduler.New(logger),
		collector:     col,
		aggregator:    agg,
		metricsSender: metricsSender,
		logsSender:    logsSender,
		telemetry:     tel,
		logger:        logger,
	}, nil
}

// Start schedules the three independent fixed-rate ticks, aligning each
// one's first firing to the next wall-clock boundary of its interval
// (spec §4.7: "interval - (now mod interval)").
func (s *Supervisor) Start(ctx context.Context) {
	s.cancellables = append(s.cancellables,
		s.scheduler.ScheduleAtFixedRate(alignToNextBoundary(s.cfg.CaptureInterval), s.cfg.CaptureInterval, func() error {
			return s.runCollector(ctx)
		}),
		s.scheduler.ScheduleAtFixedRate(alignToNextBoundary(s.cfg.AggregateInterval), s.cfg.AggregateInterval, func() error {
			return s.runAggregator(ctx)
		}),
		s.scheduler.ScheduleAtFixedRate(alignToNextBoundary(s.cfg.ReleaseInterval), s.cfg.ReleaseInterval, func() error {
			return s.runSenders(ctx)
		}),
	)
}

// Stop cancels every scheduled tick and releases the storage engine.
func (s *Supervisor) Stop() error {
	for _, c := range s.cancellables {
		c.Cancel()
	}
	return s.store.Close()
}

func alignToNextBoundary(interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	now := time.Now()
	elapsed := time.Duration(now.UnixNano()) % interval
	return interval - elapsed
}

// runCollector fans StatsRequest out to every configured plugin and
// stores the results in the wrapped metrics queue, waiting for the
// store's answer. A StoreError here is recoverable (spec §7:
// "StoreError ... abort that bucket/batch, return failure, retain
// inputs") and must not stop the schedule: it's logged and swallowed
// so the next tick retries, rather than returned to the scheduler,
// which would kill the whole periodic chain on a transient store blip.
func (s *Supervisor) runCollector(ctx context.Context) error {
	wrapped := s.collector.Collect(ctx)
	if len(wrapped) == 0 {
		return nil
	}
	records := make([]store.Record, len(wrapped))
	for i, w := range wrapped {
		records[i] = w
	}
	if err := s.store.StoreRecords(ctx, "metrics", true, records); err != nil {
		s.logger.Warn("collector tick failed, retrying next tick", zap.Error(err))
		s.recordTick("collector", false)
		return nil
	}
	s.recordTick("collector", true)
	return nil
}

// runAggregator never returns Aggregator.Run's error to the scheduler:
// that error reports a recoverable StoreError for one bucket (spec §7),
// not a vital-component crash, so the fixed aggregate_interval tick
// must stay the retry cadence instead of stopping forever.
func (s *Supervisor) runAggregator(ctx context.Context) error {
	ok, err := s.aggregator.Run(ctx)
	if err != nil {
		s.logger.Warn("aggregator tick failed, retrying next tick", zap.Error(err))
	}
	s.recordTick("aggregator", ok && err == nil)
	return nil
}

// runSenders, likewise, logs and swallows dispatch failures: a
// TransportError/UpstreamReject/StoreError leaves records queued for
// the next release_interval tick to retry (spec §7), it never stops
// the schedule.
func (s *Supervisor) runSenders(ctx context.Context) error {
	_, metricsErr := s.metricsSender.Run(ctx)
	if metricsErr != nil {
		s.logger.Warn("metrics sender tick failed, retrying next tick", zap.Error(metricsErr))
	}
	_, logsErr := s.logsSender.Run(ctx)
	if logsErr != nil {
		s.logger.Warn("logs sender tick failed, retrying next tick", zap.Error(logsErr))
	}
	s.recordTick("sender", metricsErr == nil && logsErr == nil)
	s.reportQueueSizes(ctx)
	return nil
}

func (s *Supervisor) reportQueueSizes(ctx context.Context) {
	if s.telemetry == nil {
		return
	}
	for _, q := range []struct {
		dataType string
		wrapped  bool
		kind     string
	}{
		{"metrics", false, "raw"},
		{"metrics", true, "wrapped"},
		{"logs", false, "raw"},
		{"logs", true, "wrapped"},
	} {
		s.telemetry.SetQueueSize(q.dataType, q.kind, s.store.GetQueueSize(ctx, q.dataType, q.wrapped))
	}
}

func (s *Supervisor) recordTick(component string, ok bool) {
	if s.telemetry != nil {
		s.telemetry.RecordTick(component, ok)
	}
}
