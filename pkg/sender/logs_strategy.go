package sender

import "strings"

// LogsStrategy dispatches wrapped log records to Datadog's logs intake
// (spec §4.5, grounded on chouette_iot.logs._sender.LogsSender).
type LogsStrategy struct{}

func (LogsStrategy) DataType() string { return "logs" }
func (LogsStrategy) Endpoint() string { return "v1/input" }

// PrepareRecord folds the record's own "ddtags" with global tags into a
// single comma-joined string and stamps "host" if configured
// (LogsSender.add_global_tags).
func (LogsStrategy) PrepareRecord(payload []byte, globalTags []string, host string) (map[string]interface{}, bool) {
	var decoded map[string]interface{}
	if err := jsonc.Unmarshal(payload, &decoded); err != nil {
		return nil, false
	}

	var tags []string
	switch existing := decoded["ddtags"].(type) {
	case string:
		if existing != "" {
			tags = append(tags, strings.Split(existing, ",")...)
		}
	case []interface{}:
		for _, t := range existing {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
	}
	tags = append(tags, globalTags...)
	decoded["ddtags"] = strings.Join(tags, ",")

	if host != "" {
		decoded["host"] = host
	}
	return decoded, true
}

// Envelope renders the batch as a bare JSON array, the shape the logs
// intake endpoint expects.
func (LogsStrategy) Envelope(records []map[string]interface{}) (interface{}, error) {
	return records, nil
}
