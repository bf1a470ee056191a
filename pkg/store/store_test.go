package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testRecord struct {
	payload []byte
	ts      float64
	fail    bool
}

func (r testRecord) AsDict() ([]byte, error) {
	if r.fail {
		return nil, errFailingRecord
	}
	return r.payload, nil
}

func (r testRecord) RecordTimestamp() float64 { return r.ts }

var errFailingRecord = &recordError{"record: asdict failed"}

type recordError struct{ msg string }

func (e *recordError) Error() string { return e.msg }

func newTestRedisStore(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return newRedisStoreWithClient(client, zap.NewNop())
}

func TestRedisStoreStoreCollectDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)

	records := []Record{
		testRecord{payload: []byte(`{"a":1}`), ts: 100},
		testRecord{payload: []byte(`{"a":2}`), ts: 101},
		testRecord{fail: true},
	}
	require.NoError(t, s.StoreRecords(ctx, "metrics", false, records))
	require.Equal(t, 2, s.GetQueueSize(ctx, "metrics", false))

	keys, err := s.CollectKeys(ctx, "metrics", false, 0)
	require.NoError(t, err)
	require.Len(t, keys, 2)

	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.ID
	}
	values, err := s.CollectValues(ctx, "metrics", false, ids)
	require.NoError(t, err)
	require.Len(t, values, 2)

	require.NoError(t, s.DeleteRecords(ctx, "metrics", false, ids))
	require.Equal(t, 0, s.GetQueueSize(ctx, "metrics", false))
}

func TestRedisStoreCleanupOutdated(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)

	old := float64(time.Now().Add(-1 * time.Hour).Unix())
	fresh := float64(time.Now().Unix())
	records := []Record{
		testRecord{payload: []byte(`{}`), ts: old},
		testRecord{payload: []byte(`{}`), ts: fresh},
	}
	require.NoError(t, s.StoreRecords(ctx, "metrics", true, records))
	require.Equal(t, 2, s.GetQueueSize(ctx, "metrics", true))

	require.NoError(t, s.CleanupOutdatedRecords(ctx, "metrics", true, 30*time.Minute))
	require.Equal(t, 1, s.GetQueueSize(ctx, "metrics", true))
}

func TestRedisStoreRawAndWrappedQueuesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)

	require.NoError(t, s.StoreRecords(ctx, "metrics", false, []Record{testRecord{payload: []byte(`{}`), ts: 1}}))
	require.Equal(t, 1, s.GetQueueSize(ctx, "metrics", false))
	require.Equal(t, 0, s.GetQueueSize(ctx, "metrics", true))
}

func TestSQLiteStoreStoreCollectDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(":memory:", zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	records := []Record{
		testRecord{payload: []byte(`{"a":1}`), ts: 100},
		testRecord{payload: []byte(`{"a":2}`), ts: 101},
		testRecord{fail: true},
	}
	require.NoError(t, s.StoreRecords(ctx, "logs", false, records))
	require.Equal(t, 2, s.GetQueueSize(ctx, "logs", false))

	keys, err := s.CollectKeys(ctx, "logs", false, 0)
	require.NoError(t, err)
	require.Len(t, keys, 2)

	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.ID
	}
	values, err := s.CollectValues(ctx, "logs", false, ids)
	require.NoError(t, err)
	require.Len(t, values, 2)

	require.NoError(t, s.DeleteRecords(ctx, "logs", false, ids))
	require.Equal(t, 0, s.GetQueueSize(ctx, "logs", false))
}

func TestNewUnknownStorageType(t *testing.T) {
	_, err := New("magic", "redis", 6379, "", zap.NewNop())
	require.Error(t, err)
}
