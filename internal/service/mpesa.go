package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"storecore/internal/cache"
	"storecore/internal/client"
	"storecore/internal/config"
	"storecore/internal/metrics"
	"storecore/internal/model"
	"storecore/internal/notify"
	"storecore/internal/repository"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	accessTokenCacheKey = "mpesa:access_token"
	tokenExpiryMargin   = time.Minute
)

// errDuplicateDelivery aborts a paid-order flip whose payment was already settled.
var errDuplicateDelivery = errors.New("payment already settled")

type MpesaService interface {
	GetAccessToken(ctx context.Context) (string, error)
	InitiatePush(ctx context.Context, orderID uint, phoneNumber string, amount decimal.Decimal) (*model.PaymentTransaction, error)
	HandleCallback(ctx context.Context, payload *model.StkCallbackEnvelope) error
}

type mpesaServiceImpl struct {
	db          *gorm.DB
	cfg         config.Mpesa
	mpesaClient client.MpesaClient
	cache       *cache.Accessor
	gate        PaidOrderGate
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentTransactionRepository
	effects     *sideEffects
	logger      *zap.Logger
}

func NewMpesaService(
	db *gorm.DB,
	cfg config.Mpesa,
	mpesaClient client.MpesaClient,
	cacheAccessor *cache.Accessor,
	gate PaidOrderGate,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentTransactionRepository,
	deadLetterRepo repository.DeadLetterRepository,
	notifier notify.Notifier,
	logger *zap.Logger,
) MpesaService {
	return &mpesaServiceImpl{
		db:          db,
		cfg:         cfg,
		mpesaClient: mpesaClient,
		cache:       cacheAccessor,
		gate:        gate,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		effects: &sideEffects{
			notifier:       notifier,
			deadLetterRepo: deadLetterRepo,
			logger:         logger,
		},
		logger: logger,
	}
}

// GetAccessToken returns a bearer token, cached for less than its lifetime.
func (s *mpesaServiceImpl) GetAccessToken(ctx context.Context) (string, error) {
	return cache.GetOrComputeTTL(ctx, s.cache, accessTokenCacheKey, func(ctx context.Context) (string, time.Duration, error) {
		token, err := s.mpesaClient.RequestAccessToken(ctx)
		if errors.Is(err, client.ErrUnauthorized) {
			return "", 0, fmt.Errorf("%w: %w", ErrUpstreamAuth, err)
		}
		if err != nil {
			return "", 0, fmt.Errorf("mpesa api access token: %w", err)
		}
		return token.Token, tokenCacheTTL(s.cfg.TokenTTL, token.ExpiresIn), nil
	})
}

// tokenCacheTTL caps the configured ttl so a cached token always expires
// before the gateway stops accepting it.
func tokenCacheTTL(configured, expiresIn time.Duration) time.Duration {
	if expiresIn <= 0 {
		return configured
	}
	return min(configured, expiresIn-tokenExpiryMargin)
}

// InitiatePush sends an STK push for the order's outstanding balance and
// records the pending transaction. Nothing is stored unless the gateway
// accepted the request.
func (s *mpesaServiceImpl) InitiatePush(ctx context.Context, orderID uint, phoneNumber string, amount decimal.Decimal) (*model.PaymentTransaction, error) {
	ctx, span := tracer.Start(ctx, "MpesaService.InitiatePush")
	defer span.End()
	span.SetAttributes(attribute.Int64("order_id", int64(orderID)))

	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidPayment, order.Status)
	}
	if !amount.IsPositive() || !amount.Equal(order.Balance) {
		return nil, fmt.Errorf("%w: amount %s does not match balance %s", ErrInvalidPayment, amount, order.Balance)
	}
	if !amount.Equal(amount.Truncate(0)) {
		return nil, fmt.Errorf("%w: amount %s is not a whole number of shillings", ErrInvalidPayment, amount)
	}

	phone, err := client.FormatPhoneNumber(phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayment, err)
	}

	req := &client.StkPushRequest{
		Phone:       phone,
		Amount:      amount,
		AccountRef:  "ORDER-" + strconv.FormatUint(uint64(order.ID), 10),
		Description: "Payment for order " + strconv.FormatUint(uint64(order.ID), 10),
	}

	resp, err := s.push(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("stk push not initiated", zap.Uint("order_id", orderID), zap.Error(err))
		return nil, err
	}

	txn := &model.PaymentTransaction{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		OrderID:           order.ID,
		Amount:            amount,
		PhoneNumber:       phone,
		Status:            model.PaymentStatusPending,
	}
	if err := s.paymentRepo.Create(ctx, nil, txn); err != nil {
		return nil, fmt.Errorf("store payment transaction: %w", err)
	}

	s.logger.Info("stk push initiated",
		zap.Uint("order_id", order.ID),
		zap.String("checkout_request_id", txn.CheckoutRequestID),
		zap.String("amount", amount.String()),
	)
	return txn, nil
}

// push submits the request, retrying once with a fresh token when the cached
// one has been revoked early.
func (s *mpesaServiceImpl) push(ctx context.Context, req *client.StkPushRequest) (*client.StkPushResponse, error) {
	for attempt := 0; ; attempt++ {
		token, err := s.GetAccessToken(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := s.mpesaClient.StkPush(ctx, token, req)
		if errors.Is(err, client.ErrUnauthorized) && attempt == 0 {
			s.cache.Invalidate(ctx, accessTokenCacheKey)
			continue
		}

		var apiErr *client.APIError
		switch {
		case err == nil:
			return resp, nil
		case errors.As(err, &apiErr):
			return nil, &GatewayRejectedError{Message: apiErr.Message, Cause: err}
		case errors.Is(err, client.ErrUnauthorized):
			return nil, fmt.Errorf("%w: %w", ErrUpstreamAuth, err)
		default:
			return nil, &GatewayRejectedError{Message: "gateway unreachable", Cause: err}
		}
	}
}

// HandleCallback settles the transaction named by a gateway callback. Repeat
// deliveries find the transaction no longer PENDING and change nothing. The
// returned error is for logging only; the gateway is always acknowledged.
func (s *mpesaServiceImpl) HandleCallback(ctx context.Context, payload *model.StkCallbackEnvelope) error {
	ctx, span := tracer.Start(ctx, "MpesaService.HandleCallback")
	defer span.End()

	cb := payload.Body.StkCallback
	logger := s.logger.With(
		zap.String("checkout_request_id", cb.CheckoutRequestID),
		zap.Int("result_code", cb.ResultCode),
	)
	logger.Info("stk callback received", zap.String("result_desc", cb.ResultDesc))

	if cb.CheckoutRequestID == "" {
		metrics.RecordCallback("invalid")
		return fmt.Errorf("callback without checkout request id")
	}

	txn, err := s.paymentRepo.FindByCheckoutRequestID(ctx, nil, cb.CheckoutRequestID)
	if isNotFound(err) {
		metrics.RecordCallback("unknown")
		logger.Warn("callback for unknown checkout request")
		return nil
	}
	if err != nil {
		metrics.RecordCallback("error")
		return fmt.Errorf("find payment transaction: %w", err)
	}
	logger = logger.With(zap.Uint("order_id", txn.OrderID))

	if cb.ResultCode != 0 {
		return s.settleFailed(ctx, logger, txn, cb)
	}

	amount := txn.Amount
	if v, ok := cb.CallbackMetadata.Lookup("Amount"); ok {
		if parsed, err := metadataDecimal(v); err == nil {
			amount = parsed
		} else {
			logger.Warn("unparseable callback amount, using requested amount", zap.Any("amount", v))
		}
	}
	var receipt *string
	if v, ok := cb.CallbackMetadata.Lookup("MpesaReceiptNumber"); ok {
		r := fmt.Sprint(v)
		receipt = &r
	}

	order, err := s.orderRepo.FindByID(ctx, nil, txn.OrderID)
	if err != nil {
		metrics.RecordCallback("error")
		return fmt.Errorf("find order %d: %w", txn.OrderID, err)
	}

	gatewayRef := cb.CheckoutRequestID
	if receipt != nil {
		gatewayRef = *receipt
	}

	won, err := s.gate.MaterializeIfNewlyPaid(ctx, order, PaymentConfirmation{
		Method:     PaymentMethodMpesa,
		Amount:     amount,
		GatewayRef: gatewayRef,
	}, func(tx *gorm.DB) error {
		settled, err := s.paymentRepo.Settle(ctx, tx, cb.CheckoutRequestID, repository.Settlement{
			Status:        model.PaymentStatusCompleted,
			ResultCode:    cb.ResultCode,
			ResultDesc:    cb.ResultDesc,
			ReceiptNumber: receipt,
		})
		if err != nil {
			return fmt.Errorf("settle payment transaction: %w", err)
		}
		if !settled {
			return errDuplicateDelivery
		}
		return nil
	})

	switch {
	case errors.Is(err, errDuplicateDelivery):
		metrics.RecordCallback("duplicate")
		logger.Info("duplicate callback ignored")
		return nil
	case err != nil:
		span.RecordError(err)
		metrics.RecordCallback("error")
		return fmt.Errorf("confirm payment: %w", err)
	case !won:
		metrics.RecordCallback("completed")
		logger.Info("payment recorded for order that was already paid")
		return nil
	}

	metrics.RecordCallback("completed")
	logger.Info("payment completed",
		zap.String("amount", amount.String()),
		zap.String("receipt_number", gatewayRef),
	)
	return nil
}

// settleFailed records a declined or cancelled push. The order stays PENDING
// so the customer can retry.
func (s *mpesaServiceImpl) settleFailed(ctx context.Context, logger *zap.Logger, txn *model.PaymentTransaction, cb model.StkCallback) error {
	settled, err := s.paymentRepo.Settle(ctx, nil, cb.CheckoutRequestID, repository.Settlement{
		Status:     model.PaymentStatusFailed,
		ResultCode: cb.ResultCode,
		ResultDesc: cb.ResultDesc,
	})
	if err != nil {
		metrics.RecordCallback("error")
		return fmt.Errorf("settle payment transaction: %w", err)
	}
	if !settled {
		metrics.RecordCallback("duplicate")
		logger.Info("duplicate callback ignored")
		return nil
	}

	metrics.RecordCallback("failed")
	logger.Info("payment failed", zap.String("result_desc", cb.ResultDesc))
	s.effects.notify(ctx, notify.PaymentFailed{
		OrderID:           txn.OrderID,
		CheckoutRequestID: cb.CheckoutRequestID,
		CustomerPhone:     txn.PhoneNumber,
		Reason:            cb.ResultDesc,
	})
	return nil
}

func metadataDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Zero, fmt.Errorf("unexpected amount type %T", v)
	}
}
