package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
)

// NewCheckpointStore builds the store selected by cfg.Backend. rdb is only
// used by the redis backend.
func NewCheckpointStore(ctx context.Context, cfg model.CheckpointConfig, rdb redis.UniversalClient) (model.CheckpointStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis checkpoint backend needs a redis client")
		}
		return NewRedisCheckpointStore(rdb, cfg.TTL), nil
	case "postgres":
		return NewSQLCheckpointStore(ctx, DriverPostgres, cfg.DSN)
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "file:checkpoints.db?_busy_timeout=5000"
		}
		return NewSQLCheckpointStore(ctx, DriverSQLite, dsn)
	case "memory":
		return NewMemoryCheckpointStore(), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}
