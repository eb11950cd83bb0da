package repository

import (
	"context"
	"storecore/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockRepository interface {
	LockEntry(ctx context.Context, tx *gorm.DB, productID, branchID string) (*model.StockEntry, error)
	Adjust(ctx context.Context, tx *gorm.DB, entry *model.StockEntry, delta int64) error
	SetLevel(ctx context.Context, tx *gorm.DB, entry *model.StockEntry, quantity, threshold int64) error
	RecordMovement(ctx context.Context, tx *gorm.DB, movement *model.StockMovement) error
	Find(ctx context.Context, productID, branchID string) (*model.StockEntry, error)
	ListByBranch(ctx context.Context, branchID string) ([]*model.StockEntry, error)
	ListMovements(ctx context.Context, referenceID string) ([]*model.StockMovement, error)
}

type stockRepoImpl struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepoImpl{
		db: db,
	}
}

// LockEntry returns the stock row for (product, branch) locked FOR UPDATE
// until tx ends. A missing row is created at zero first so that there is
// always something to lock.
func (r *stockRepoImpl) LockEntry(ctx context.Context, tx *gorm.DB, productID, branchID string) (*model.StockEntry, error) {
	seed := model.StockEntry{ProductID: productID, BranchID: branchID}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seed).Error
	if err != nil {
		return nil, err
	}

	var entry model.StockEntry
	err = tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// Adjust applies delta to a locked entry. No floor is enforced here.
func (r *stockRepoImpl) Adjust(ctx context.Context, tx *gorm.DB, entry *model.StockEntry, delta int64) error {
	err := tx.WithContext(ctx).Model(&model.StockEntry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return err
	}

	entry.Quantity += delta
	return nil
}

func (r *stockRepoImpl) SetLevel(ctx context.Context, tx *gorm.DB, entry *model.StockEntry, quantity, threshold int64) error {
	err := tx.WithContext(ctx).Model(&model.StockEntry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"quantity":            quantity,
			"low_stock_threshold": threshold,
			"updated_at":          time.Now(),
		}).Error
	if err != nil {
		return err
	}

	entry.Quantity = quantity
	entry.LowStockThreshold = threshold
	return nil
}

func (r *stockRepoImpl) RecordMovement(ctx context.Context, tx *gorm.DB, movement *model.StockMovement) error {
	return tx.WithContext(ctx).Create(movement).Error
}

func (r *stockRepoImpl) Find(ctx context.Context, productID, branchID string) (*model.StockEntry, error) {
	var entry model.StockEntry
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *stockRepoImpl) ListByBranch(ctx context.Context, branchID string) ([]*model.StockEntry, error) {
	var entries []*model.StockEntry
	err := r.db.WithContext(ctx).
		Where("branch_id = ?", branchID).
		Order("product_id").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *stockRepoImpl) ListMovements(ctx context.Context, referenceID string) ([]*model.StockMovement, error) {
	var movements []*model.StockMovement
	err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		Order("id").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}
