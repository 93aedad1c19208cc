package processed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "p24:processed:"

// RedisStore shares processed keys between instances.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		s.logger.Error("failed to mark notification processed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func (s *RedisStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	_, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		s.logger.Error("failed to check processed notification", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("check processed: %w", err)
	}
	return true, nil
}
