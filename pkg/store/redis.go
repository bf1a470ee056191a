package store

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v9"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RedisStore is the default Store engine, grounded directly on
// chouette_iot.storage.engines.RedisEngine: each queue is a sorted set
// of key→timestamp (for ordering/TTL) plus a hash of key→payload.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// RedisConfig configures the Redis connection (spec §6: REDIS_HOST,
// REDIS_PORT).
type RedisConfig struct {
	Host string
	Port int
}

// NewRedisStore builds a RedisStore for the server at Host:Port. No
// connection is made here; the client connects on first use.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Host + ":" + strconv.Itoa(cfg.Port),
	})
	return &RedisStore{client: client, logger: logger}
}

// newRedisStoreWithClient lets this package's own tests point a
// RedisStore at an arbitrary *redis.Client, e.g. one dialed against
// miniredis.
func newRedisStoreWithClient(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// NewRedisStoreFromClient builds a RedisStore around an already-dialed
// *redis.Client. Exported so other packages' tests can point a Store at
// a miniredis instance without this package's test helpers.
func NewRedisStoreFromClient(client *redis.Client, logger *zap.Logger) *RedisStore {
	return newRedisStoreWithClient(client, logger)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) StoreRecords(ctx context.Context, dataType string, wrapped bool, records []Record) error {
	queueName, setName, hashName := queueNames(dataType, wrapped)

	keys := make(map[string]float64, len(records))
	values := make(map[string]interface{}, len(records))
	for _, rec := range records {
		payload, err := rec.AsDict()
		if err != nil {
			continue
		}
		id := uuid.NewString()
		keys[id] = rec.RecordTimestamp()
		values[id] = payload
	}
	if len(values) == 0 {
		r.logger.Debug("nothing to store", zap.String("queue", queueName))
		return nil
	}

	zMembers := make([]redis.Z, 0, len(keys))
	for k, score := range keys {
		zMembers = append(zMembers, redis.Z{Score: score, Member: k})
	}

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, setName, zMembers...)
	pipe.HSet(ctx, hashName, values)
	_, err := pipe.Exec(ctx)
	if err != nil {
		r.logger.Warn("could not store records", zap.String("queue", queueName), zap.Error(err))
		return err
	}
	r.logger.Debug("stored records", zap.Int("count", len(values)), zap.String("queue", queueName))
	return nil
}

func (r *RedisStore) CollectKeys(ctx context.Context, dataType string, wrapped bool, amount int) ([]Key, error) {
	_, setName, _ := queueNames(dataType, wrapped)
	stop := int64(amount - 1)
	if amount == 0 {
		stop = -1
	}
	res, err := r.client.ZRangeWithScores(ctx, setName, 0, stop).Result()
	if err != nil {
		r.logger.Warn("could not collect keys", zap.String("queue", setName), zap.Error(err))
		return nil, err
	}
	keys := make([]Key, 0, len(res))
	for _, z := range res {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		keys = append(keys, Key{ID: member, Timestamp: z.Score})
	}
	return keys, nil
}

func (r *RedisStore) CollectValues(ctx context.Context, dataType string, wrapped bool, keys []string) ([][]byte, error) {
	_, _, hashName := queueNames(dataType, wrapped)
	if len(keys) == 0 {
		return nil, nil
	}
	raw, err := r.client.HMGet(ctx, hashName, keys...).Result()
	if err != nil {
		r.logger.Warn("could not collect values", zap.String("queue", hashName), zap.Error(err))
		return nil, err
	}
	values := make([][]byte, 0, len(raw))
	for _, v := range raw {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		values = append(values, []byte(s))
	}
	return values, nil
}

func (r *RedisStore) DeleteRecords(ctx context.Context, dataType string, wrapped bool, keys []string) error {
	_, setName, hashName := queueNames(dataType, wrapped)
	if len(keys) == 0 {
		return nil
	}
	members := make([]interface{}, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, setName, members...)
	pipe.HDel(ctx, hashName, keys...)
	_, err := pipe.Exec(ctx)
	if err != nil {
		r.logger.Warn("could not delete records", zap.String("queue", setName), zap.Error(err))
		return err
	}
	return nil
}

func (r *RedisStore) CleanupOutdatedRecords(ctx context.Context, dataType string, wrapped bool, ttl time.Duration) error {
	queueName, setName, hashName := queueNames(dataType, wrapped)
	threshold := float64(time.Now().Add(-ttl).Unix())

	thresholdStr := strconv.FormatInt(int64(threshold), 10)
	outdated, err := r.client.ZRangeByScore(ctx, setName, &redis.ZRangeBy{Min: "0", Max: thresholdStr}).Result()
	if err != nil {
		r.logger.Warn("could not cleanup outdated records", zap.String("queue", queueName), zap.Error(err))
		return err
	}
	if len(outdated) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, setName, "0", thresholdStr)
	pipe.HDel(ctx, hashName, outdated...)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("could not cleanup outdated records", zap.String("queue", queueName), zap.Error(err))
		return err
	}
	r.logger.Debug("cleaned outdated records", zap.Int("count", len(outdated)), zap.String("queue", queueName))
	return nil
}

func (r *RedisStore) GetQueueSize(ctx context.Context, dataType string, wrapped bool) int {
	_, _, hashName := queueNames(dataType, wrapped)
	n, err := r.client.HLen(ctx, hashName).Result()
	if err != nil {
		r.logger.Warn("could not calculate queue size", zap.String("queue", hashName), zap.Error(err))
		return -1
	}
	return int(n)
}
