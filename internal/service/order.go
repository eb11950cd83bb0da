package service

import (
	"context"
	"fmt"
	"storecore/internal/config"
	"storecore/internal/model"
	"storecore/internal/notify"
	"storecore/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	PaymentMethodMpesa = "MPESA"
	PaymentMethodCash  = "CASH"
	PaymentMethodCOD   = "COD"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req CheckoutRequest) (*model.Order, error)
	GetOrder(ctx context.Context, orderID uint) (*model.Order, error)
	SetOrderStatus(ctx context.Context, orderID uint, status model.OrderStatus) (*model.Order, error)
	ReplayMaterialization(ctx context.Context, orderID uint) (*model.Sale, error)
	ListDeadLetters(ctx context.Context, limit int) ([]*model.DeadLetter, error)
	PaidOrderGate
}

// PaidOrderGate is the single place an order becomes PAID. Both the payment
// callback and the manual status route go through it.
type PaidOrderGate interface {
	MaterializeIfNewlyPaid(ctx context.Context, order *model.Order, payment PaymentConfirmation, within func(tx *gorm.DB) error) (bool, error)
}

// PaymentConfirmation describes the money that made an order PAID.
type PaymentConfirmation struct {
	Method     string
	Amount     decimal.Decimal
	GatewayRef string
}

type CheckoutRequest struct {
	Customer      Customer
	BranchID      string
	PaymentMethod string
	Items         []CheckoutItem
	// ExpectedTotal, when set, must match the total computed from current prices.
	ExpectedTotal *decimal.Decimal
}

type CheckoutItem struct {
	ProductID string
	Quantity  int64
}

type orderServiceImpl struct {
	db          *gorm.DB
	cfg         config.Sales
	sales       SaleService
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	branchRepo  repository.BranchRepository
	saleRepo    repository.SaleRepository
	effects     *sideEffects
	logger      *zap.Logger
}

func NewOrderService(
	db *gorm.DB,
	cfg config.Sales,
	sales SaleService,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	branchRepo repository.BranchRepository,
	saleRepo repository.SaleRepository,
	deadLetterRepo repository.DeadLetterRepository,
	notifier notify.Notifier,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		cfg:         cfg,
		sales:       sales,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		branchRepo:  branchRepo,
		saleRepo:    saleRepo,
		effects: &sideEffects{
			notifier:       notifier,
			deadLetterRepo: deadLetterRepo,
			logger:         logger,
		},
		logger: logger,
	}
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, req CheckoutRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidOrder)
	}

	switch req.PaymentMethod {
	case "":
		req.PaymentMethod = PaymentMethodMpesa
	case PaymentMethodMpesa, PaymentMethodCash, PaymentMethodCOD:
	default:
		return nil, fmt.Errorf("%w: unsupported payment method %q", ErrInvalidOrder, req.PaymentMethod)
	}

	if req.BranchID == "" {
		req.BranchID = s.cfg.OnlineBranchID
	}
	active, err := s.branchRepo.CountActive(ctx, req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("check branch: %w", err)
	}
	if active != 1 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBranch, req.BranchID)
	}

	quantities := make(map[string]int64)
	var productIDs []string
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be positive", ErrInvalidOrder)
		}
		if _, seen := quantities[item.ProductID]; !seen {
			productIDs = append(productIDs, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	products, err := s.productRepo.FindMany(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("get many products by item ids: %w", err)
	}
	if len(products) != len(productIDs) {
		return nil, fmt.Errorf("%w: some products not found", ErrUnknownProduct)
	}

	total := decimal.Zero
	items := make([]model.OrderItem, len(products))
	for i, product := range products {
		quantity := quantities[product.ID]
		total = total.Add(product.Price.Mul(decimal.NewFromInt(quantity)))

		items[i] = model.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    quantity,
			UnitPrice:   product.Price,
		}
	}
	if req.ExpectedTotal != nil && !req.ExpectedTotal.Equal(total) {
		return nil, fmt.Errorf("%w: total %s does not match current prices %s", ErrInvalidOrder, req.ExpectedTotal, total)
	}

	order := &model.Order{
		CustomerName:  req.Customer.Name,
		CustomerEmail: req.Customer.Email,
		CustomerPhone: req.Customer.Phone,
		BranchID:      req.BranchID,
		PaymentMethod: req.PaymentMethod,
		TotalAmount:   total,
		AmountPaid:    decimal.Zero,
		Balance:       total,
		Status:        model.OrderStatusPending,
		Items:         items,
	}
	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		return nil, fmt.Errorf("store order in db: %w", err)
	}

	s.logger.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.String("branch_id", order.BranchID),
		zap.String("total", order.TotalAmount.String()),
	)
	return order, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

// SetOrderStatus applies an operator's status change. Moving to PAID goes
// through the paid-order gate, so a manual payment and a gateway callback for
// the same order produce one sale between them.
func (s *orderServiceImpl) SetOrderStatus(ctx context.Context, orderID uint, status model.OrderStatus) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.SetOrderStatus")
	defer span.End()

	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidStatusTransition, status)
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == status {
		return order, nil
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, order.Status, status)
	}

	var applied bool
	if status == model.OrderStatusPaid {
		applied, err = s.MaterializeIfNewlyPaid(ctx, order, PaymentConfirmation{
			Method: order.PaymentMethod,
			Amount: order.TotalAmount,
		}, nil)
	} else {
		applied, err = s.orderRepo.CompareAndSetStatus(ctx, nil, orderID, order.Status, status)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: update order status: %w", ErrTransactionIntegrity, err)
	}

	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Lost a race with another writer; fine if it landed where we wanted.
	if !applied && current.Status != status {
		return nil, fmt.Errorf("%w: order moved to %s concurrently", ErrInvalidStatusTransition, current.Status)
	}

	s.logger.Info("order status updated",
		zap.Uint("order_id", orderID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(status)),
		zap.Bool("applied", applied),
	)
	return current, nil
}

// MaterializeIfNewlyPaid flips order from PENDING to PAID with a single
// conditional update. within, when given, runs first in the same transaction;
// its error aborts the flip. Only the caller whose update changed the row
// creates the sale. A sale failure is dead-lettered, never returned, because
// the payment it follows is already final.
func (s *orderServiceImpl) MaterializeIfNewlyPaid(ctx context.Context, order *model.Order, payment PaymentConfirmation, within func(tx *gorm.DB) error) (bool, error) {
	ctx, span := tracer.Start(ctx, "OrderService.MaterializeIfNewlyPaid")
	defer span.End()

	balance := order.TotalAmount.Sub(payment.Amount)

	var won bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if within != nil {
			if err := within(tx); err != nil {
				return err
			}
		}

		var err error
		won, err = s.orderRepo.MarkPaid(ctx, tx, order.ID, payment.Amount, balance)
		return err
	})
	if err != nil {
		return false, err
	}
	if !won {
		s.logger.Info("order already left PENDING, not materializing", zap.Uint("order_id", order.ID))
		return false, nil
	}

	order.Status = model.OrderStatusPaid
	order.AmountPaid = payment.Amount
	order.Balance = balance

	s.effects.notify(ctx, notify.OrderPaid{
		OrderID:       order.ID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		CustomerPhone: order.CustomerPhone,
		Amount:        payment.Amount,
		GatewayRef:    payment.GatewayRef,
	})

	if _, err := s.materialize(ctx, order, payment.Method); err != nil {
		span.RecordError(err)
		s.logger.Error("sale materialization failed for paid order",
			zap.Uint("order_id", order.ID),
			zap.String("gateway_ref", payment.GatewayRef),
			zap.Error(err),
		)
		orderID := order.ID
		s.effects.deadLetter(ctx, model.DeadLetterMaterialization, &orderID, payment.GatewayRef, err)
	}

	return true, nil
}

func (s *orderServiceImpl) materialize(ctx context.Context, order *model.Order, method string) (*model.Sale, error) {
	if method == "" {
		method = order.PaymentMethod
	}
	branchID := order.BranchID
	if branchID == "" {
		branchID = s.cfg.OnlineBranchID
	}

	lines := make([]SaleLine, len(order.Items))
	for i, item := range order.Items {
		lines[i] = SaleLine{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	orderID := order.ID
	return s.sales.CreateSale(ctx, SaleRequest{
		BranchID:      branchID,
		CashierID:     s.cfg.SystemCashier,
		Items:         lines,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: method,
		Customer: &Customer{
			Name:  order.CustomerName,
			Email: order.CustomerEmail,
			Phone: order.CustomerPhone,
		},
		OrderID: &orderID,
	})
}

// ReplayMaterialization creates the sale for a paid order whose earlier
// materialization failed. It is a no-op returning the existing sale when one
// is already recorded.
func (s *orderServiceImpl) ReplayMaterialization(ctx context.Context, orderID uint) (*model.Sale, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPaid && order.Status != model.OrderStatusShipped {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidStatusTransition, order.Status)
	}

	sale, err := s.saleRepo.FindByOrderID(ctx, nil, orderID)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("find sale for order: %w", err)
	}
	if sale == nil {
		sale, err = s.materialize(ctx, order, "")
		if err != nil {
			return nil, err
		}
		s.logger.Info("sale materialization replayed",
			zap.Uint("order_id", orderID),
			zap.String("receipt_number", sale.ReceiptNumber),
		)
	}

	if err := s.effects.deadLetterRepo.ResolveForOrder(ctx, model.DeadLetterMaterialization, orderID); err != nil {
		s.logger.Warn("resolve dead letters", zap.Uint("order_id", orderID), zap.Error(err))
	}
	return sale, nil
}

func (s *orderServiceImpl) ListDeadLetters(ctx context.Context, limit int) ([]*model.DeadLetter, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	letters, err := s.effects.deadLetterRepo.ListUnresolved(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	return letters, nil
}
