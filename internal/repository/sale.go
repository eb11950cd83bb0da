package repository

import (
	"context"
	"storecore/internal/model"

	"gorm.io/gorm"
)

type SaleRepository interface {
	Create(ctx context.Context, tx *gorm.DB, sale *model.Sale) error
	FindByReceipt(ctx context.Context, receiptNumber string) (*model.Sale, error)
	FindByOrderID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Sale, error)
	CountByOrderID(ctx context.Context, orderID uint) (int64, error)
	ListUnsigned(ctx context.Context, limit int) ([]*model.Sale, error)
}

type saleRepoImpl struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepoImpl{db: db}
}

func (r *saleRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *saleRepoImpl) Create(ctx context.Context, tx *gorm.DB, sale *model.Sale) error {
	return r.conn(tx).WithContext(ctx).Create(sale).Error
}

func (r *saleRepoImpl) FindByReceipt(ctx context.Context, receiptNumber string) (*model.Sale, error) {
	var sale model.Sale
	err := r.db.WithContext(ctx).
		Where("receipt_number = ?", receiptNumber).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepoImpl) FindByOrderID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Sale, error) {
	var sale model.Sale
	err := r.conn(tx).WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepoImpl) CountByOrderID(ctx context.Context, orderID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Sale{}).
		Where("order_id = ?", orderID).
		Count(&count).Error

	return count, err
}

// ListUnsigned returns sales completed in offline fiscal mode, oldest first.
func (r *saleRepoImpl) ListUnsigned(ctx context.Context, limit int) ([]*model.Sale, error) {
	var sales []*model.Sale
	err := r.db.WithContext(ctx).
		Where("fiscal_control_code IS NULL").
		Order("created_at, id").
		Limit(limit).
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}
