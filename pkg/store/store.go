// Package store implements the durable raw/wrapped queue abstraction
// (spec §4.2): a pluggable Store interface with Redis and SQLite
// engines, modeled on chouette_iot.storage's sorted-set/hash-backed
// StorageEngine.
package store

import (
	"context"
	"time"
)

// Record is anything that can be durably enqueued: it must render
// itself to a storage payload and report the timestamp used for TTL
// cleanup and ordering (spec §4.2: "records whose asdict() fails are
// silently skipped").
type Record interface {
	AsDict() ([]byte, error)
	RecordTimestamp() float64
}

// Key pairs a collected record's storage key with its timestamp, as
// returned by CollectKeys (spec §4.2).
type Key struct {
	ID        string
	Timestamp float64
}

// Store is the durable queue abstraction every engine implements. Every
// queue is identified by a (dataType, wrapped) pair, e.g.
// ("metrics", false) for the raw metrics queue.
type Store interface {
	// StoreRecords durably persists records into the given queue.
	// Records that fail to render via AsDict are silently dropped; the
	// call still reports success for the rest (spec §4.2).
	StoreRecords(ctx context.Context, dataType string, wrapped bool, records []Record) error

	// CollectKeys returns up to `amount` keys from the queue ordered by
	// timestamp (oldest first). amount == 0 means "all of them".
	CollectKeys(ctx context.Context, dataType string, wrapped bool, amount int) ([]Key, error)

	// CollectValues fetches the stored payloads for the given keys.
	// Missing keys are silently omitted from the result.
	CollectValues(ctx context.Context, dataType string, wrapped bool, keys []string) ([][]byte, error)

	// DeleteRecords removes the given keys from both the ordering set
	// and the value store.
	DeleteRecords(ctx context.Context, dataType string, wrapped bool, keys []string) error

	// CleanupOutdatedRecords removes every record in the queue older
	// than ttl (spec §4.2: "Datadog rejects metrics older than 4 hours").
	CleanupOutdatedRecords(ctx context.Context, dataType string, wrapped bool, ttl time.Duration) error

	// GetQueueSize reports how many records are currently in the queue,
	// or -1 if the size could not be determined (spec: "values less
	// than 1 SHOULD be filtered by callers").
	GetQueueSize(ctx context.Context, dataType string, wrapped bool) int

	// Close releases any held connections.
	Close() error
}

// queueNames mirrors RedisEngine._get_queue_names: "chouette:{type}:{raw|wrapped}"
// plus its ".keys"/".values" suffixes.
func queueNames(dataType string, wrapped bool) (queue, set, hash string) {
	kind := "raw"
	if wrapped {
		kind = "wrapped"
	}
	queue = "chouette:" + dataType + ":" + kind
	return queue, queue + ".keys", queue + ".values"
}
