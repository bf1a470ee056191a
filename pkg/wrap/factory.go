package wrap

// New builds the configured Wrapper (spec §6: METRICS_WRAPPER is
// "simple" | "datadog" | (none)). An empty or unrecognized value
// returns nil, mirroring WrappersFactory.get_wrapper: no wrapper
// configured means the aggregator only cleans up and never wraps.
func New(name string, cfg DatadogConfig) Wrapper {
	switch name {
	case "datadog":
		return NewDatadogWrapper(cfg)
	case "simple":
		return SimpleWrapper{}
	default:
		return nil
	}
}
