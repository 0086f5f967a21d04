package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chative-core-poc-v1/shopping-agent/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/shopping-agent/internal/core/error"
	logx "github.com/Chative-core-poc-v1/shopping-agent/pkg/logger"
)

// RedisCheckpointStore keeps one JSON checkpoint per thread and guards
// writes with WATCH on the key.
type RedisCheckpointStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisCheckpointStore(rdb redis.UniversalClient, ttl time.Duration) *RedisCheckpointStore {
	return &RedisCheckpointStore{rdb: rdb, ttl: ttl}
}

func (r *RedisCheckpointStore) checkpointKey(threadID string) string {
	return fmt.Sprintf("checkpoint:%s", threadID)
}

func (r *RedisCheckpointStore) Load(ctx context.Context, threadID string) (*model.ConversationState, error) {
	key := r.checkpointKey(threadID)

	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load checkpoint from redis")
		return nil, errx.WrapRedis(err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to unmarshal checkpoint")
		return nil, errx.Persistence(err)
	}
	return rec.state()
}

func (r *RedisCheckpointStore) Save(ctx context.Context, threadID string, state *model.ConversationState) error {
	key := r.checkpointKey(threadID)
	expected := state.Version

	payload, err := encodeRecord(threadID, state, expected+1)
	if err != nil {
		return errx.Persistence(err)
	}

	txf := func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != expected {
			return errx.Conflict(threadID)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, r.ttl)
			return nil
		})
		return err
	}

	if err := r.rdb.Watch(ctx, txf, key); err != nil {
		var app *errx.AppError
		if errors.As(err, &app) {
			return app
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to write checkpoint to redis")
		return errx.WrapRedis(err)
	}
	state.Version = expected + 1
	return nil
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return 0, err
	}
	return rec.Version, nil
}

func (r *RedisCheckpointStore) Close() error {
	return nil
}

var _ model.CheckpointStore = (*RedisCheckpointStore)(nil)
