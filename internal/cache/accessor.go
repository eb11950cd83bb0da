package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

type Accessor struct {
	store  Store
	logger *zap.Logger
}

func NewAccessor(store Store, logger *zap.Logger) *Accessor {
	if store == nil {
		store = NoopStore{}
	}
	return &Accessor{store: store, logger: logger}
}

// GetOrCompute returns the cached value under key, or calls compute and stores
// its result for ttl. Cache failures degrade to calling compute directly; only
// compute's own error is returned.
func GetOrCompute[T any](ctx context.Context, a *Accessor, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	return GetOrComputeTTL(ctx, a, key, func(ctx context.Context) (T, time.Duration, error) {
		value, err := compute(ctx)
		return value, ttl, err
	})
}

// GetOrComputeTTL is GetOrCompute for values that carry their own lifetime.
// A non-positive ttl returns the value without caching it.
func GetOrComputeTTL[T any](ctx context.Context, a *Accessor, key string, compute func(context.Context) (T, time.Duration, error)) (T, error) {
	raw, err := a.store.Get(ctx, key)
	switch {
	case err == nil:
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		a.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, ErrMiss):
		a.logger.Debug("cache read failed", zap.String("key", key), zap.Error(err))
	}

	value, ttl, err := compute(ctx)
	if err != nil {
		return value, err
	}
	if ttl <= 0 {
		return value, nil
	}

	raw, err = json.Marshal(value)
	if err != nil {
		a.logger.Warn("cache value not encodable", zap.String("key", key), zap.Error(err))
		return value, nil
	}
	if err := a.store.Set(ctx, key, raw, ttl); err != nil {
		a.logger.Debug("cache write failed", zap.String("key", key), zap.Error(err))
	}

	return value, nil
}

// Invalidate deletes keys matching pattern. Best effort.
func (a *Accessor) Invalidate(ctx context.Context, pattern string) {
	if err := a.store.DeletePattern(ctx, pattern); err != nil {
		a.logger.Debug("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
