package service

import (
	"context"
	"errors"
	"fmt"
	"storecore/internal/client"
	"storecore/internal/config"
	"storecore/internal/metrics"
	"storecore/internal/model"
	"storecore/internal/notify"
	"storecore/internal/repository"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SaleService interface {
	CreateSale(ctx context.Context, req SaleRequest) (*model.Sale, error)
	ListUnsignedSales(ctx context.Context, limit int) ([]*model.Sale, error)
}

type SaleRequest struct {
	BranchID      string
	CashierID     string
	Items         []SaleLine
	TotalAmount   decimal.Decimal
	PaymentMethod string
	Customer      *Customer
	// OrderID is set when the sale materializes a paid online order.
	OrderID *uint
}

type SaleLine struct {
	ProductID string
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
}

func (l SaleLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

type saleServiceImpl struct {
	db         *gorm.DB
	vatRate    decimal.Decimal
	fiscal     client.FiscalSigner
	saleRepo   repository.SaleRepository
	stockRepo  repository.StockRepository
	branchRepo repository.BranchRepository
	effects    *sideEffects
	logger     *zap.Logger
}

func NewSaleService(
	db *gorm.DB,
	cfg config.Sales,
	fiscal client.FiscalSigner,
	saleRepo repository.SaleRepository,
	stockRepo repository.StockRepository,
	branchRepo repository.BranchRepository,
	deadLetterRepo repository.DeadLetterRepository,
	notifier notify.Notifier,
	logger *zap.Logger,
) (SaleService, error) {
	rate, err := decimal.NewFromString(cfg.VATRate)
	if err != nil || rate.IsNegative() {
		return nil, fmt.Errorf("invalid VAT rate %q", cfg.VATRate)
	}

	return &saleServiceImpl{
		db:         db,
		vatRate:    rate,
		fiscal:     fiscal,
		saleRepo:   saleRepo,
		stockRepo:  stockRepo,
		branchRepo: branchRepo,
		effects: &sideEffects{
			notifier:       notifier,
			deadLetterRepo: deadLetterRepo,
			logger:         logger,
		},
		logger: logger,
	}, nil
}

// SplitVAT splits a VAT-inclusive total into net and tax at rate.
func SplitVAT(total, rate decimal.Decimal) (net, tax decimal.Decimal) {
	net = total.Div(decimal.NewFromInt(1).Add(rate)).Round(2)
	return net, total.Sub(net)
}

func newReceiptNumber(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "RCP-" + now.Format("20060102") + "-" + id[:12]
}

func validateSale(req SaleRequest) error {
	if req.BranchID == "" {
		return fmt.Errorf("%w: branch is required", ErrInvalidSale)
	}
	if req.CashierID == "" {
		return fmt.Errorf("%w: cashier is required", ErrInvalidSale)
	}
	if req.PaymentMethod == "" {
		return fmt.Errorf("%w: payment method is required", ErrInvalidSale)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidSale)
	}

	sum := decimal.Zero
	for _, item := range req.Items {
		if item.ProductID == "" || item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: bad line for product %q", ErrInvalidSale, item.ProductID)
		}
		sum = sum.Add(item.Total())
	}
	if !sum.Equal(req.TotalAmount) {
		return fmt.Errorf("%w: total %s does not match items %s", ErrInvalidSale, req.TotalAmount, sum)
	}
	return nil
}

// CreateSale persists a sale and decrements stock for every line in one
// transaction. Stock may go negative. Fiscal signing happens before the
// transaction opens so that no row lock is held while the device is called;
// a failed commit discards the signature together with the receipt number.
func (s *saleServiceImpl) CreateSale(ctx context.Context, req SaleRequest) (*model.Sale, error) {
	ctx, span := tracer.Start(ctx, "SaleService.CreateSale")
	defer span.End()

	if err := validateSale(req); err != nil {
		return nil, err
	}

	active, err := s.branchRepo.CountActive(ctx, req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("%w: check branch: %w", ErrTransactionIntegrity, err)
	}
	if active != 1 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBranch, req.BranchID)
	}

	now := time.Now()
	net, tax := SplitVAT(req.TotalAmount, s.vatRate)
	sale := &model.Sale{
		ReceiptNumber: newReceiptNumber(now),
		OrderID:       req.OrderID,
		BranchID:      req.BranchID,
		CashierID:     req.CashierID,
		TotalAmount:   req.TotalAmount,
		NetAmount:     net,
		TaxAmount:     tax,
		PaymentMethod: req.PaymentMethod,
	}
	if req.Customer != nil {
		if req.Customer.Name != "" {
			sale.CustomerName = &req.Customer.Name
		}
		if req.Customer.Phone != "" {
			sale.CustomerPhone = &req.Customer.Phone
		}
	}

	fiscalItems := make([]client.FiscalItem, len(req.Items))
	for i, item := range req.Items {
		sale.Items = append(sale.Items, model.SaleItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.Total(),
		})
		fiscalItems[i] = client.FiscalItem{
			Description: item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TaxRate:     s.vatRate,
			Total:       item.Total(),
		}
	}

	if sig := s.fiscal.SignInvoice(ctx, sale.ReceiptNumber, fiscalItems, req.TotalAmount); sig != nil {
		signedAt := sig.SignedAt
		if signedAt.IsZero() {
			signedAt = now
		}
		sale.FiscalControlCode = &sig.ControlCode
		sale.FiscalSignature = &sig.Signature
		sale.FiscalQRCode = &sig.QRCode
		sale.FiscalSignedAt = &signedAt
	} else {
		s.logger.Warn("sale proceeding in offline fiscal mode",
			zap.String("receipt_number", sale.ReceiptNumber),
			zap.String("branch_id", sale.BranchID),
		)
	}

	var alerts []*model.StockEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Locks are taken in request order; sales on disjoint products never contend.
		for _, item := range req.Items {
			entry, err := s.stockRepo.LockEntry(ctx, tx, item.ProductID, req.BranchID)
			if err != nil {
				return fmt.Errorf("lock stock %s@%s: %w", item.ProductID, req.BranchID, err)
			}
			if err := s.stockRepo.Adjust(ctx, tx, entry, -item.Quantity); err != nil {
				return fmt.Errorf("decrement stock %s@%s: %w", item.ProductID, req.BranchID, err)
			}
			err = s.stockRepo.RecordMovement(ctx, tx, &model.StockMovement{
				ReferenceID:   sale.ReceiptNumber,
				Kind:          model.MovementSale,
				ProductID:     item.ProductID,
				BranchID:      req.BranchID,
				Delta:         -item.Quantity,
				QuantityAfter: entry.Quantity,
				Actor:         req.CashierID,
			})
			if err != nil {
				return fmt.Errorf("record sale movement: %w", err)
			}
			if entry.Oversold() || entry.Low() {
				alerts = append(alerts, entry)
			}
		}

		if err := s.saleRepo.Create(ctx, tx, sale); err != nil {
			return fmt.Errorf("store sale: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		s.logger.Error("sale rolled back",
			zap.String("receipt_number", sale.ReceiptNumber),
			zap.String("branch_id", sale.BranchID),
			zap.Error(err),
		)
		return nil, unitOfWorkError(err)
	}

	metrics.RecordSale(sale.PaymentMethod, sale.Signed())
	s.logger.Info("sale recorded",
		zap.String("receipt_number", sale.ReceiptNumber),
		zap.String("branch_id", sale.BranchID),
		zap.String("payment_method", sale.PaymentMethod),
		zap.Bool("fiscal_signed", sale.Signed()),
	)

	for _, entry := range alerts {
		s.effects.stockAlert(ctx, entry)
	}
	s.effects.notify(ctx, notify.SaleRecorded{
		ReceiptNumber: sale.ReceiptNumber,
		BranchID:      sale.BranchID,
		OrderID:       sale.OrderID,
		Total:         sale.TotalAmount,
		PaymentMethod: sale.PaymentMethod,
		Signed:        sale.Signed(),
	})

	return sale, nil
}

func (s *saleServiceImpl) ListUnsignedSales(ctx context.Context, limit int) ([]*model.Sale, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sales, err := s.saleRepo.ListUnsigned(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsigned sales: %w", err)
	}
	return sales, nil
}

// isNotFound reports whether err is gorm's record-not-found.
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
