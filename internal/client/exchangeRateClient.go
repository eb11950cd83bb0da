package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRateClient fetches the latest rates quoted against a base currency.
type ExchangeRateClient interface {
	Latest(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

type exchangeRateClientImpl struct {
	httpClient *http.Client
	apiURL     string
}

func NewExchangeRateClient(apiURL string) ExchangeRateClient {
	return &exchangeRateClientImpl{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		apiURL: strings.TrimRight(apiURL, "/"),
	}
}

func (c *exchangeRateClientImpl) Latest(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	if c.apiURL == "" {
		return nil, fmt.Errorf("exchange rate api not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiURL+"/latest?base="+url.QueryEscape(base), nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("exchange rate api error %d: %s", resp.StatusCode, string(b))
	}

	var res struct {
		Base  string                     `json:"base"`
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode exchange rate response: %w", err)
	}
	if len(res.Rates) == 0 {
		return nil, fmt.Errorf("exchange rate api returned no rates for %s", base)
	}

	return res.Rates, nil
}
