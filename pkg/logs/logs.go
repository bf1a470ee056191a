// Package logs defines the log record shape the log sender dispatches
// to Datadog's logs intake (spec §4.5, modeled on chouette_iot.logs).
package logs

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonc = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is an arbitrary JSON log object plus the timestamp used for
// queue ordering and TTL cleanup. Unlike metrics, log bodies are
// producer-defined and opaque to the agent beyond the "ddtags" field
// the sender rewrites.
type Record struct {
	Body      map[string]interface{}
	Timestamp float64
}

// NewRecord stamps Timestamp with the current time if the body carries
// none under "timestamp".
func NewRecord(body map[string]interface{}) Record {
	ts := float64(time.Now().Unix())
	if raw, ok := body["timestamp"]; ok {
		if f, ok := raw.(float64); ok {
			ts = f
		}
	}
	return Record{Body: body, Timestamp: ts}
}

// RecordTimestamp satisfies store.Record.
func (r Record) RecordTimestamp() float64 {
	return r.Timestamp
}

// AsDict renders the record for durable storage.
func (r Record) AsDict() ([]byte, error) {
	return jsonc.Marshal(r.Body)
}
