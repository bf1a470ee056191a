package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akatashev/chouette-iot/pkg/store"
	"github.com/akatashev/chouette-iot/pkg/wrap"
)

func newRedisClientForTest(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

type rawRecord struct {
	payload []byte
	ts      float64
}

func (r rawRecord) AsDict() ([]byte, error)  { return r.payload, nil }
func (r rawRecord) RecordTimestamp() float64 { return r.ts }

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	return store.NewRedisStoreFromClient(newRedisClientForTest(mr.Addr()), zap.NewNop())
}

func TestAggregatorMovesRawIntoWrapped(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.StoreRecords(ctx, "metrics", false, []store.Record{
		rawRecord{payload: []byte(`{"metric":"reqs","type":"count","timestamp":100,"value":1,"tags":{"a":"1"}}`), ts: 100},
		rawRecord{payload: []byte(`{"metric":"reqs","type":"count","timestamp":103,"value":2,"tags":{"a":"1"}}`), ts: 103},
	}))

	agg := New(st, wrap.SimpleWrapper{}, Config{FlushInterval: 10, TTL: 4 * time.Hour}, zap.NewNop())
	ok, err := agg.Run(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 0, st.GetQueueSize(ctx, "metrics", false))
	assert.Equal(t, 1, st.GetQueueSize(ctx, "metrics", true))
}

func TestAggregatorNilWrapperSkipsProcessing(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.StoreRecords(ctx, "metrics", false, []store.Record{
		rawRecord{payload: []byte(`{"metric":"reqs","type":"count","timestamp":100,"value":1}`), ts: 100},
	}))

	agg := New(st, nil, Config{FlushInterval: 10, TTL: 4 * time.Hour}, zap.NewNop())
	ok, err := agg.Run(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, st.GetQueueSize(ctx, "metrics", false))
}

func TestAggregatorNothingToProcess(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	agg := New(st, wrap.SimpleWrapper{}, Config{FlushInterval: 10, TTL: 4 * time.Hour}, zap.NewNop())
	ok, err := agg.Run(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
