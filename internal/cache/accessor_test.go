package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) DeletePattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
		}
	}
	return nil
}

type downStore struct{}

var errConnRefused = errors.New("dial tcp: connection refused")

func (downStore) Get(context.Context, string) ([]byte, error) { return nil, errConnRefused }
func (downStore) Set(context.Context, string, []byte, time.Duration) error {
	return errConnRefused
}
func (downStore) DeletePattern(context.Context, string) error { return errConnRefused }

func TestGetOrCompute_CachesValue(t *testing.T) {
	store := newMemoryStore()
	a := NewAccessor(store, zaptest.NewLogger(t))

	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		return "token-1", nil
	}

	v, err := GetOrCompute(context.Background(), a, "mpesa:token", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, "token-1", v)

	v, err = GetOrCompute(context.Background(), a, "mpesa:token", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, "token-1", v)
	assert.Equal(t, 1, calls)
	assert.Equal(t, time.Minute, store.ttls["mpesa:token"])
}

func TestGetOrCompute_StoreDownFallsBack(t *testing.T) {
	a := NewAccessor(downStore{}, zaptest.NewLogger(t))

	calls := 0
	for i := 0; i < 3; i++ {
		v, err := GetOrCompute(context.Background(), a, "fx:USD:KES", time.Hour, func(context.Context) (float64, error) {
			calls++
			return 129.5, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 129.5, v)
	}
	assert.Equal(t, 3, calls)

	a.Invalidate(context.Background(), "fx:*")
}

func TestGetOrCompute_ComputeErrorNotCached(t *testing.T) {
	store := newMemoryStore()
	a := NewAccessor(store, zaptest.NewLogger(t))
	boom := errors.New("upstream rejected credentials")

	_, err := GetOrCompute(context.Background(), a, "k", time.Minute, func(context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestGetOrCompute_UndecodableEntryRecomputed(t *testing.T) {
	store := newMemoryStore()
	store.data["k"] = []byte("{not json")
	a := NewAccessor(store, zaptest.NewLogger(t))

	v, err := GetOrCompute(context.Background(), a, "k", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, []byte("7"), store.data["k"])
}

func TestGetOrComputeTTL_UsesValueLifetime(t *testing.T) {
	store := newMemoryStore()
	a := NewAccessor(store, zaptest.NewLogger(t))
	ctx := context.Background()

	v, err := GetOrComputeTTL(ctx, a, "short", func(context.Context) (string, time.Duration, error) {
		return "a", 90 * time.Second, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, 90*time.Second, store.ttls["short"])

	calls := 0
	for i := 0; i < 2; i++ {
		_, err := GetOrComputeTTL(ctx, a, "expired", func(context.Context) (string, time.Duration, error) {
			calls++
			return "b", 0, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
	assert.NotContains(t, store.data, "expired")
}

func TestInvalidate(t *testing.T) {
	store := newMemoryStore()
	a := NewAccessor(store, zaptest.NewLogger(t))
	store.data["fx:USD:KES"] = []byte("1")
	store.data["fx:EUR:KES"] = []byte("2")
	store.data["mpesa:token"] = []byte(`"t"`)

	a.Invalidate(context.Background(), "fx:*")

	assert.Len(t, store.data, 1)
	assert.Contains(t, store.data, "mpesa:token")
}

func TestNoopStore(t *testing.T) {
	a := NewAccessor(nil, zaptest.NewLogger(t))
	calls := 0
	for i := 0; i < 2; i++ {
		_, err := GetOrCompute(context.Background(), a, "k", time.Minute, func(context.Context) (string, error) {
			calls++
			return "v", nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}
