package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"BreakoutSentinel/internal/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const updatedAtSuffix = ":updated_at"

// RedisStore keeps the crossed set as one JSON document under Key.
type RedisStore struct {
	client *redis.Client
	key    string
	log    *zap.Logger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, key string, log *zap.Logger) *RedisStore {
	return &RedisStore{client: client, key: key, log: log}
}

func (s *RedisStore) Load(ctx context.Context) (model.CrossedSet, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.CrossedSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	set, err := Decode(data)
	if err != nil {
		s.log.Warn("redis state content format mismatch, treating as empty", zap.String("key", s.key), zap.Error(err))
		return model.CrossedSet{}, nil
	}
	return set, nil
}

// Replace sets the document and its timestamp in one MULTI/EXEC.
func (s *RedisStore) Replace(ctx context.Context, set model.CrossedSet) error {
	data, err := Encode(set)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key, data, 0)
		pipe.Set(ctx, s.key+updatedAtSuffix, time.Now().UTC().Format(time.RFC3339Nano), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis replace %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) UpdatedAt(ctx context.Context) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.key+updatedAtSuffix).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse updated_at: %w", err)
	}
	return ts, true, nil
}
