package service

import (
	"context"
	"fmt"
	"storecore/internal/cache"
	"storecore/internal/client"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ExchangeRateService interface {
	Rate(ctx context.Context, base, quote string) (decimal.Decimal, error)
	Refresh(ctx context.Context)
}

type exchangeRateServiceImpl struct {
	fxClient client.ExchangeRateClient
	cache    *cache.Accessor
	ttl      time.Duration
}

func NewExchangeRateService(fxClient client.ExchangeRateClient, cacheAccessor *cache.Accessor, ttl time.Duration) ExchangeRateService {
	return &exchangeRateServiceImpl{
		fxClient: fxClient,
		cache:    cacheAccessor,
		ttl:      ttl,
	}
}

// Rate returns how many units of quote one unit of base buys.
func (s *exchangeRateServiceImpl) Rate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	if base == "" || quote == "" {
		return decimal.Zero, fmt.Errorf("base and quote currencies are required")
	}
	if base == quote {
		return decimal.NewFromInt(1), nil
	}

	rates, err := cache.GetOrCompute(ctx, s.cache, "fx:"+base, s.ttl, func(ctx context.Context) (map[string]decimal.Decimal, error) {
		return s.fxClient.Latest(ctx, base)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch %s rates: %w", base, err)
	}

	rate, ok := rates[quote]
	if !ok {
		return decimal.Zero, fmt.Errorf("no %s/%s rate", base, quote)
	}
	return rate, nil
}

// Refresh drops every cached rate table.
func (s *exchangeRateServiceImpl) Refresh(ctx context.Context) {
	s.cache.Invalidate(ctx, "fx:*")
}
