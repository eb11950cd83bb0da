package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"storecore/internal/circuitbreaker"
	"storecore/internal/config"
	"storecore/internal/metrics"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type FiscalItem struct {
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Total       decimal.Decimal `json:"total"`
}

type FiscalSignature struct {
	ControlCode string    `json:"control_code"`
	Signature   string    `json:"signature"`
	QRCode      string    `json:"qr_code"`
	SignedAt    time.Time `json:"signed_at"`
}

// FiscalSigner obtains a fiscal signature for a sale. A nil result means the
// sale proceeds unsigned; implementations never block past their timeout.
type FiscalSigner interface {
	SignInvoice(ctx context.Context, invoiceID string, items []FiscalItem, total decimal.Decimal) *FiscalSignature
}

type fiscalClientImpl struct {
	httpClient *http.Client
	deviceURL  string
	timeout    time.Duration
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewFiscalClient(cfg *config.Fiscal, logger *zap.Logger) FiscalSigner {
	return &fiscalClientImpl{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		deviceURL: cfg.DeviceURL,
		timeout:   cfg.Timeout,
		breaker:   circuitbreaker.New(cfg.BreakerFailures, cfg.BreakerResetTime),
		logger:    logger,
	}
}

func (c *fiscalClientImpl) SignInvoice(ctx context.Context, invoiceID string, items []FiscalItem, total decimal.Decimal) *FiscalSignature {
	if c.deviceURL == "" {
		metrics.RecordFiscal("skipped")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var sig *FiscalSignature
	err := c.breaker.Execute(func() error {
		var err error
		sig, err = c.sign(ctx, invoiceID, items, total)
		return err
	})
	if err != nil {
		result := "failed"
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			result = "skipped"
		}
		metrics.RecordFiscal(result)
		c.logger.Warn("fiscal signing unavailable, continuing unsigned",
			zap.String("invoice_id", invoiceID),
			zap.String("breaker", c.breaker.State().String()),
			zap.Error(err),
		)
		return nil
	}

	metrics.RecordFiscal("signed")
	return sig
}

func (c *fiscalClientImpl) sign(ctx context.Context, invoiceID string, items []FiscalItem, total decimal.Decimal) (*FiscalSignature, error) {
	body, err := json.Marshal(map[string]interface{}{
		"invoice_number": invoiceID,
		"items":          items,
		"total":          total,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal fiscal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.deviceURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fiscal device request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fiscal device error %d: %s", resp.StatusCode, string(b))
	}

	var sig FiscalSignature
	if err := json.NewDecoder(resp.Body).Decode(&sig); err != nil {
		return nil, fmt.Errorf("decode fiscal response: %w", err)
	}
	if sig.ControlCode == "" || sig.Signature == "" {
		return nil, errors.New("fiscal response missing control code or signature")
	}
	if sig.SignedAt.IsZero() {
		sig.SignedAt = time.Now()
	}

	return &sig, nil
}
