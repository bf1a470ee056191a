// Package plugins provides the built-in collector plugins: host
// resource stats (grounded on chouette_iot.metrics.plugins.HostStatsCollector,
// via gopsutil) and queue backlog depth (a supplemented feature).
package plugins

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"

	"github.com/akatashev/chouette-iot/pkg/metrics"
)

// HostMetric names the host stat families this plugin can report
// (spec §6 HOST_COLLECTOR_METRICS default: cpu, fs, la, ram).
const (
	HostMetricCPU     = "cpu"
	HostMetricFS      = "fs"
	HostMetricLA      = "la"
	HostMetricRAM     = "ram"
	HostMetricNetwork = "network"
)

// HostPlugin collects CPU/RAM/disk/load-average/network stats from the
// host the agent runs on.
type HostPlugin struct {
	metrics_ []string
	logger   *zap.Logger
}

// NewHostPlugin builds a HostPlugin reporting the given metric
// families, defaulting to cpu/fs/la/ram when none are given.
func NewHostPlugin(families []string, logger *zap.Logger) *HostPlugin {
	if len(families) == 0 {
		families = []string{HostMetricCPU, HostMetricFS, HostMetricLA, HostMetricRAM}
	}
	return &HostPlugin{metrics_: families, logger: logger}
}

func (p *HostPlugin) Name() string { return "host" }

func (p *HostPlugin) CollectStats(ctx context.Context) []*metrics.WrappedMetric {
	var out []*metrics.WrappedMetric
	for _, family := range p.metrics_ {
		switch family {
		case HostMetricCPU:
			out = append(out, p.collectCPU(ctx)...)
		case HostMetricFS:
			out = append(out, p.collectFS(ctx)...)
		case HostMetricLA:
			out = append(out, p.collectLA(ctx)...)
		case HostMetricRAM:
			out = append(out, p.collectRAM(ctx)...)
		case HostMetricNetwork:
			out = append(out, p.collectNetwork(ctx)...)
		}
	}
	return out
}

func (p *HostPlugin) collectCPU(ctx context.Context) []*metrics.WrappedMetric {
	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(percentages) == 0 || percentages[0] == 0.0 {
		return nil
	}
	return wrapGauges([]namedValue{{"Chouette.host.cpu.percentage", percentages[0]}}, nil, 0)
}

func (p *HostPlugin) collectLA(ctx context.Context) []*metrics.WrappedMetric {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		p.logger.Debug("could not read load average", zap.Error(err))
		return nil
	}
	return wrapGauges([]namedValue{{"Chouette.host.la", avg.Load1}}, []string{"period:1m"}, 0)
}

func (p *HostPlugin) collectRAM(ctx context.Context) []*metrics.WrappedMetric {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		p.logger.Debug("could not read memory stats", zap.Error(err))
		return nil
	}
	return wrapGauges([]namedValue{
		{"Chouette.host.memory.used", float64(vm.Used)},
		{"Chouette.host.memory.available", float64(vm.Available)},
	}, nil, 0)
}

func (p *HostPlugin) collectFS(ctx context.Context) []*metrics.WrappedMetric {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		p.logger.Debug("could not read disk partitions", zap.Error(err))
		return nil
	}
	timestamp := float64(time.Now().Unix())

	seen := make(map[string]bool)
	var out []*metrics.WrappedMetric
	for _, part := range partitions {
		if seen[part.Device] {
			continue
		}
		seen[part.Device] = true

		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			continue
		}
		tags := []string{"device:" + part.Device}
		out = append(out, wrapGauges([]namedValue{
			{"Chouette.host.fs.used", float64(usage.Used)},
			{"Chouette.host.fs.free", float64(usage.Free)},
		}, tags, timestamp)...)
	}
	return out
}

func (p *HostPlugin) collectNetwork(ctx context.Context) []*metrics.WrappedMetric {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		p.logger.Debug("could not read network counters", zap.Error(err))
		return nil
	}
	var out []*metrics.WrappedMetric
	for _, c := range counters {
		if c.Name == "lo" {
			continue
		}
		tags := []string{"iface:" + c.Name}
		out = append(out, wrapGauges([]namedValue{
			{"Chouette.host.network.bytes.sent", float64(c.BytesSent)},
			{"Chouette.host.network.bytes.recv", float64(c.BytesRecv)},
		}, tags, 0)...)
	}
	return out
}

type namedValue struct {
	name  string
	value float64
}

// wrapGauges mirrors StatsCollector._wrap_metrics: zero-valued metrics
// are dropped, and a zero timestamp lets WrappedMetric stamp "now".
func wrapGauges(values []namedValue, tags []string, timestamp float64) []*metrics.WrappedMetric {
	var out []*metrics.WrappedMetric
	for _, nv := range values {
		if nv.value == 0 {
			continue
		}
		out = append(out, metrics.NewWrappedMetric(nv.name, metrics.TypeGauge, nv.value, timestamp, tags, 0))
	}
	return out
}
