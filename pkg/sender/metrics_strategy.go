package sender

// MetricsStrategy dispatches wrapped metrics as a Datadog "series" POST
// (spec §4.5, grounded on chouette_iot.metrics._sender.MetricsSender).
type MetricsStrategy struct{}

func (MetricsStrategy) DataType() string { return "metrics" }
func (MetricsStrategy) Endpoint() string { return "v1/series" }

// PrepareRecord decodes a stored WrappedMetric payload, merges in
// global tags (MetricsSender.add_global_tags appends self.tags to the
// record's own "tags" list), and stamps "host" if configured (spec
// §4.5 step 5).
func (MetricsStrategy) PrepareRecord(payload []byte, globalTags []string, host string) (map[string]interface{}, bool) {
	var decoded map[string]interface{}
	if err := jsonc.Unmarshal(payload, &decoded); err != nil {
		return nil, false
	}
	tags, _ := decoded["tags"].([]interface{})
	merged := make([]interface{}, 0, len(tags)+len(globalTags))
	merged = append(merged, tags...)
	for _, t := range globalTags {
		merged = append(merged, t)
	}
	decoded["tags"] = merged
	if host != "" {
		decoded["host"] = host
	}
	return decoded, true
}

// Envelope wraps the batch as {"series": [...]} per the Datadog v1
// series API.
func (MetricsStrategy) Envelope(records []map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"series": records}, nil
}
