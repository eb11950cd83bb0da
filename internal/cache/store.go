// Package cache implements a failure-tolerant cache-aside accessor over an
// optional external key/value store.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Store.Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Store is the backend the Accessor reads through. Implementations may fail at
// any time; the Accessor never surfaces those failures.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
}

// NoopStore is selected when no cache backend is configured or reachable.
// Every read misses and every write is dropped.
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) ([]byte, error) {
	return nil, ErrMiss
}

func (NoopStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NoopStore) DeletePattern(context.Context, string) error {
	return nil
}
