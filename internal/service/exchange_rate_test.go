package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storecore/internal/cache"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubRates struct {
	calls int
	err   error
}

func (s *stubRates) Latest(_ context.Context, base string) (map[string]decimal.Decimal, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return map[string]decimal.Decimal{
		"USD": decimal.RequireFromString("0.0077"),
		"EUR": decimal.RequireFromString("0.0071"),
	}, nil
}

func TestExchangeRateService_CachesPerBase(t *testing.T) {
	fx := &stubRates{}
	svc := NewExchangeRateService(fx, cache.NewAccessor(newMapStore(), zaptest.NewLogger(t)), time.Hour)
	ctx := context.Background()

	rate, err := svc.Rate(ctx, "kes", "usd")
	require.NoError(t, err)
	assert.Equal(t, "0.0077", rate.String())

	rate, err = svc.Rate(ctx, "KES", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.0071", rate.String())
	assert.Equal(t, 1, fx.calls)

	svc.Refresh(ctx)
	_, err = svc.Rate(ctx, "KES", "USD")
	require.NoError(t, err)
	assert.Equal(t, 2, fx.calls)

	_, err = svc.Rate(ctx, "KES", "JPY")
	assert.Error(t, err)
}

func TestExchangeRateService_SameCurrencyAndCacheDown(t *testing.T) {
	fx := &stubRates{}
	svc := NewExchangeRateService(fx, cache.NewAccessor(nil, zaptest.NewLogger(t)), time.Hour)
	ctx := context.Background()

	rate, err := svc.Rate(ctx, "KES", "KES")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 0, fx.calls)

	for i := 0; i < 2; i++ {
		_, err = svc.Rate(ctx, "KES", "USD")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, fx.calls)

	fx.err = errors.New("api down")
	_, err = svc.Rate(ctx, "KES", "USD")
	assert.Error(t, err)
}
