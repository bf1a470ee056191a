package metrics

import "math"

// bucketTimestamp returns the flush-interval bucket a sample timestamp
// falls into (spec §4.4: "group by ts // flush_interval"), mirroring
// Python's floor-division for positive ts.
func bucketTimestamp(ts float64, flushInterval int) int64 {
	return int64(math.Floor(ts / float64(flushInterval)))
}

// GroupRaw parses a batch of raw metric payloads and groups them into
// MergedMetrics keyed first by flush-interval bucket, then by Identity()
// within the bucket (spec §4.4). Payloads that fail to parse are
// dropped, mirroring the storage layer's "asdict()-failure is silently
// skipped" policy (spec §4.2) rather than aborting the whole batch.
func GroupRaw(payloads [][]byte, flushInterval int) map[int64]map[string]*MergedMetric {
	buckets := make(map[int64]map[string]*MergedMetric)

	for _, payload := range payloads {
		var raw RawMetric
		if err := jsonc.Unmarshal(payload, &raw); err != nil {
			continue
		}
		if raw.Metric == "" || raw.Type == "" {
			continue
		}

		bucket := bucketTimestamp(raw.Timestamp, flushInterval)
		group, ok := buckets[bucket]
		if !ok {
			group = make(map[string]*MergedMetric)
			buckets[bucket] = group
		}

		candidate := NewMergedMetric(raw.Metric, raw.Type, []interface{}{raw.Value}, []float64{raw.Timestamp}, raw.Tags, flushInterval)
		id := candidate.Identity()
		if existing, ok := group[id]; ok {
			group[id] = existing.Merge(candidate)
		} else {
			group[id] = candidate
		}
	}

	return buckets
}
