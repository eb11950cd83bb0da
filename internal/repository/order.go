package repository

import (
	"context"
	"storecore/internal/model"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Order, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID uint, amountPaid, balance decimal.Decimal) (bool, error)
	CompareAndSetStatus(ctx context.Context, tx *gorm.DB, orderID uint, from, to model.OrderStatus) (bool, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Create inserts the order together with its items.
func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return r.conn(tx).WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, orderID uint) (*model.Order, error) {
	var order model.Order
	err := r.conn(tx).WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// MarkPaid moves a PENDING order to PAID. It reports false when the order was
// not PENDING, which is how callers learn they lost the race.
func (r *orderRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, orderID uint, amountPaid, balance decimal.Decimal) (bool, error) {
	result := r.conn(tx).WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":      model.OrderStatusPaid,
			"amount_paid": amountPaid,
			"balance":     balance,
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *orderRepoImpl) CompareAndSetStatus(ctx context.Context, tx *gorm.DB, orderID uint, from, to model.OrderStatus) (bool, error) {
	result := r.conn(tx).WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
