// Package collector implements the fan-out plugin contract (spec §4.6):
// a StatsRequest/StatsResponse tell pattern over a name->factory plugin
// registry, grounded on chouette_iot.metrics.plugins.
package collector

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/akatashev/chouette-iot/pkg/metrics"
)

// StatsRequest names the collector-to-plugin request. Collect does not
// send it as a message: it calls every plugin's CollectStats directly and
// waits for all of them to return, with no timeout of its own, so the
// slowest plugin sets how long a collection takes. A plugin that returns
// no stats contributes nothing.
type StatsRequest struct{}

// StatsResponse carries one plugin's collected metrics back to the
// caller, tagged with the producing plugin's name for diagnostics.
type StatsResponse struct {
	Producer string
	Stats    []*metrics.WrappedMetric
}

// Plugin collects a batch of self/host/queue metrics on demand.
type Plugin interface {
	Name() string
	CollectStats(ctx context.Context) []*metrics.WrappedMetric
}

// Factory builds a Plugin instance, deferring construction to
// registration time so a plugin needing configuration (e.g. the queue
// plugin's Store) can be wired without the registry knowing about it.
type Factory func() Plugin

// Registry is the name->factory plugin registry (spec §4.6, SPEC_FULL
// supplemented "Collector plugin registry"): it's how CollectorPlugins
// config names (spec §6) get turned into running plugins.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named plugin factory. Re-registering a name replaces
// it, which is convenient for tests stubbing out a plugin.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Build instantiates the plugins named in `names`, skipping any name
// that isn't registered rather than failing the whole collector
// (spec §7: unknown plugin names are a ConfigError logged once at
// startup, not a fatal error).
func (r *Registry) Build(names []string, logger *zap.Logger) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugins := make([]Plugin, 0, len(names))
	for _, name := range names {
		factory, ok := r.factories[name]
		if !ok {
			logger.Warn("unknown collector plugin, skipping", zap.String("plugin", name))
			continue
		}
		plugins = append(plugins, factory())
	}
	return plugins
}

// Collector fans a StatsRequest out to every configured plugin and
// gathers their StatsResponses. Plugins run concurrently since they're
// independent and side-effect-free beyond their own stats collection.
type Collector struct {
	plugins []Plugin
	logger  *zap.Logger
}

// New builds a Collector over the given plugins.
func New(plugins []Plugin, logger *zap.Logger) *Collector {
	return &Collector{plugins: plugins, logger: logger}
}

// Collect fans out StatsRequest to every plugin and merges their
// responses into one WrappedMetric slice.
func (c *Collector) Collect(ctx context.Context) []*metrics.WrappedMetric {
	responses := make(chan StatsResponse, len(c.plugins))
	var wg sync.WaitGroup
	for _, p := range c.plugins {
		wg.Add(1)
		go func(p Plugin) {
			defer wg.Done()
			stats := p.CollectStats(ctx)
			responses <- StatsResponse{Producer: p.Name(), Stats: stats}
		}(p)
	}
	wg.Wait()
	close(responses)

	var all []*metrics.WrappedMetric
	for resp := range responses {
		c.logger.Debug("collected stats", zap.String("plugin", resp.Producer), zap.Int("count", len(resp.Stats)))
		all = append(all, resp.Stats...)
	}
	return all
}
