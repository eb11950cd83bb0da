package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storecore/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanBatch = 100

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func InitRedis(cfg config.Redis, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", cfg.Addr))
	return rdb, nil
}

// NewStore picks the live Redis backend when it is enabled and reachable at
// startup, and the no-op store otherwise. The returned close func is never nil.
func NewStore(cfg config.Redis, logger *zap.Logger) (Store, func() error) {
	if !cfg.Enabled {
		logger.Info("cache disabled, using pass-through store")
		return NoopStore{}, func() error { return nil }
	}

	rdb, err := InitRedis(cfg, logger)
	if err != nil {
		logger.Warn("cache unavailable, using pass-through store", zap.Error(err))
		return NoopStore{}, func() error { return nil }
	}

	return NewRedisStore(rdb), rdb.Close
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) error {
	iter := s.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()

	keys := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanBatch {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return s.rdb.Del(ctx, keys...).Err()
	}
	return nil
}
