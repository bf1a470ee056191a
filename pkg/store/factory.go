package store

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the configured Store engine (spec §6: STORAGE_TYPE).
func New(storageType, redisHost string, redisPort int, sqlitePath string, logger *zap.Logger) (Store, error) {
	switch storageType {
	case "", "redis":
		return NewRedisStore(RedisConfig{Host: redisHost, Port: redisPort}, logger), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath, logger)
	default:
		return nil, fmt.Errorf("store: unknown storage type %q", storageType)
	}
}
