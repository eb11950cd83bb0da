package service

import (
	"context"
	"fmt"
	"storecore/internal/model"
	"storecore/internal/notify"
	"storecore/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type StockService interface {
	TransferStock(ctx context.Context, req TransferRequest) (*TransferResult, error)
	GetStock(ctx context.Context, productID, branchID string) (*model.StockEntry, error)
	ListStock(ctx context.Context, branchID string) ([]*model.StockEntry, error)
	SetStockLevel(ctx context.Context, req StockLevelRequest) (*model.StockEntry, error)
}

type TransferRequest struct {
	ProductID  string
	FromBranch string
	ToBranch   string
	Quantity   int64
	Actor      string
}

type TransferResult struct {
	TransferID string
	From       *model.StockEntry
	To         *model.StockEntry
}

type StockLevelRequest struct {
	ProductID string
	BranchID  string
	Quantity  int64
	Threshold int64
	Actor     string
}

type stockServiceImpl struct {
	db          *gorm.DB
	stockRepo   repository.StockRepository
	branchRepo  repository.BranchRepository
	productRepo repository.ProductRepository
	effects     *sideEffects
	logger      *zap.Logger
}

func NewStockService(
	db *gorm.DB,
	stockRepo repository.StockRepository,
	branchRepo repository.BranchRepository,
	productRepo repository.ProductRepository,
	deadLetterRepo repository.DeadLetterRepository,
	notifier notify.Notifier,
	logger *zap.Logger,
) StockService {
	return &stockServiceImpl{
		db:          db,
		stockRepo:   stockRepo,
		branchRepo:  branchRepo,
		productRepo: productRepo,
		effects: &sideEffects{
			notifier:       notifier,
			deadLetterRepo: deadLetterRepo,
			logger:         logger,
		},
		logger: logger,
	}
}

func (s *stockServiceImpl) requireBranches(ctx context.Context, branchIDs ...string) error {
	count, err := s.branchRepo.CountActive(ctx, branchIDs...)
	if err != nil {
		return fmt.Errorf("%w: check branches: %w", ErrTransactionIntegrity, err)
	}
	if count != int64(len(branchIDs)) {
		return fmt.Errorf("%w: %v", ErrUnknownBranch, branchIDs)
	}
	return nil
}

func (s *stockServiceImpl) requireProduct(ctx context.Context, productID string) error {
	_, err := s.productRepo.FindByID(ctx, productID)
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	if err != nil {
		return fmt.Errorf("%w: find product: %w", ErrTransactionIntegrity, err)
	}
	return nil
}

// TransferStock moves quantity of a product between two branches. Both rows
// are locked in branch id order so that opposite transfers between the same
// pair of branches cannot deadlock. The source balance is checked only after
// its lock is held.
func (s *stockServiceImpl) TransferStock(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	ctx, span := tracer.Start(ctx, "StockService.TransferStock")
	defer span.End()

	if req.ProductID == "" || req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: product and a positive quantity are required", ErrInvalidTransfer)
	}
	if req.FromBranch == req.ToBranch {
		return nil, fmt.Errorf("%w: source and destination are the same branch", ErrInvalidTransfer)
	}
	if err := s.requireBranches(ctx, req.FromBranch, req.ToBranch); err != nil {
		return nil, err
	}
	if err := s.requireProduct(ctx, req.ProductID); err != nil {
		return nil, err
	}

	result := &TransferResult{TransferID: uuid.NewString()}

	first, second := req.FromBranch, req.ToBranch
	if second < first {
		first, second = second, first
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := make(map[string]*model.StockEntry, 2)
		for _, branchID := range []string{first, second} {
			entry, err := s.stockRepo.LockEntry(ctx, tx, req.ProductID, branchID)
			if err != nil {
				return fmt.Errorf("lock stock %s@%s: %w", req.ProductID, branchID, err)
			}
			locked[branchID] = entry
		}

		from, to := locked[req.FromBranch], locked[req.ToBranch]
		if from.Quantity < req.Quantity {
			return fmt.Errorf("%w: %s holds %d of %s, %d requested",
				ErrInsufficientStock, req.FromBranch, from.Quantity, req.ProductID, req.Quantity)
		}

		if err := s.stockRepo.Adjust(ctx, tx, from, -req.Quantity); err != nil {
			return fmt.Errorf("decrement source: %w", err)
		}
		if err := s.stockRepo.Adjust(ctx, tx, to, req.Quantity); err != nil {
			return fmt.Errorf("increment destination: %w", err)
		}

		movements := []*model.StockMovement{
			{
				ReferenceID:   result.TransferID,
				Kind:          model.MovementTransferOut,
				ProductID:     req.ProductID,
				BranchID:      req.FromBranch,
				Delta:         -req.Quantity,
				QuantityAfter: from.Quantity,
				Actor:         req.Actor,
			},
			{
				ReferenceID:   result.TransferID,
				Kind:          model.MovementTransferIn,
				ProductID:     req.ProductID,
				BranchID:      req.ToBranch,
				Delta:         req.Quantity,
				QuantityAfter: to.Quantity,
				Actor:         req.Actor,
			},
		}
		for _, m := range movements {
			if err := s.stockRepo.RecordMovement(ctx, tx, m); err != nil {
				return fmt.Errorf("record transfer movement: %w", err)
			}
		}

		result.From, result.To = from, to
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, unitOfWorkError(err)
	}

	s.logger.Info("stock transferred",
		zap.String("transfer_id", result.TransferID),
		zap.String("product_id", req.ProductID),
		zap.String("from_branch", req.FromBranch),
		zap.String("to_branch", req.ToBranch),
		zap.Int64("quantity", req.Quantity),
	)
	if result.From.Low() {
		s.effects.stockAlert(ctx, result.From)
	}

	return result, nil
}

// GetStock returns the entry for a product at a branch. A pair that has never
// been stocked reads as zero.
func (s *stockServiceImpl) GetStock(ctx context.Context, productID, branchID string) (*model.StockEntry, error) {
	entry, err := s.stockRepo.Find(ctx, productID, branchID)
	if isNotFound(err) {
		return &model.StockEntry{ProductID: productID, BranchID: branchID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find stock: %w", err)
	}
	return entry, nil
}

func (s *stockServiceImpl) ListStock(ctx context.Context, branchID string) ([]*model.StockEntry, error) {
	if err := s.requireBranches(ctx, branchID); err != nil {
		return nil, err
	}
	entries, err := s.stockRepo.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	return entries, nil
}

// SetStockLevel overwrites the counted quantity and threshold, recording the
// difference as an adjustment.
func (s *stockServiceImpl) SetStockLevel(ctx context.Context, req StockLevelRequest) (*model.StockEntry, error) {
	if req.ProductID == "" || req.Quantity < 0 || req.Threshold < 0 {
		return nil, fmt.Errorf("%w: product and non-negative levels are required", ErrInvalidTransfer)
	}
	if err := s.requireBranches(ctx, req.BranchID); err != nil {
		return nil, err
	}
	if err := s.requireProduct(ctx, req.ProductID); err != nil {
		return nil, err
	}

	var entry *model.StockEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.stockRepo.LockEntry(ctx, tx, req.ProductID, req.BranchID)
		if err != nil {
			return fmt.Errorf("lock stock: %w", err)
		}

		delta := req.Quantity - entry.Quantity
		if err := s.stockRepo.SetLevel(ctx, tx, entry, req.Quantity, req.Threshold); err != nil {
			return fmt.Errorf("set stock level: %w", err)
		}

		return s.stockRepo.RecordMovement(ctx, tx, &model.StockMovement{
			ReferenceID:   uuid.NewString(),
			Kind:          model.MovementAdjustment,
			ProductID:     req.ProductID,
			BranchID:      req.BranchID,
			Delta:         delta,
			QuantityAfter: entry.Quantity,
			Actor:         req.Actor,
		})
	})
	if err != nil {
		return nil, unitOfWorkError(err)
	}

	s.logger.Info("stock level set",
		zap.String("product_id", req.ProductID),
		zap.String("branch_id", req.BranchID),
		zap.Int64("quantity", req.Quantity),
		zap.String("actor", req.Actor),
	)
	return entry, nil
}
