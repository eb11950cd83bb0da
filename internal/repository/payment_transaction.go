package repository

import (
	"context"
	"storecore/internal/model"
	"time"

	"gorm.io/gorm"
)

type PaymentTransactionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, txn *model.PaymentTransaction) error
	FindByCheckoutRequestID(ctx context.Context, tx *gorm.DB, checkoutRequestID string) (*model.PaymentTransaction, error)
	Settle(ctx context.Context, tx *gorm.DB, checkoutRequestID string, outcome Settlement) (bool, error)
}

// Settlement is the terminal state written by a gateway callback.
type Settlement struct {
	Status        model.PaymentStatus
	ResultCode    int
	ResultDesc    string
	ReceiptNumber *string
}

type paymentTransactionRepoImpl struct {
	db *gorm.DB
}

func NewPaymentTransactionRepository(db *gorm.DB) PaymentTransactionRepository {
	return &paymentTransactionRepoImpl{db: db}
}

func (r *paymentTransactionRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *paymentTransactionRepoImpl) Create(ctx context.Context, tx *gorm.DB, txn *model.PaymentTransaction) error {
	return r.conn(tx).WithContext(ctx).Create(txn).Error
}

func (r *paymentTransactionRepoImpl) FindByCheckoutRequestID(ctx context.Context, tx *gorm.DB, checkoutRequestID string) (*model.PaymentTransaction, error) {
	var txn model.PaymentTransaction
	err := r.conn(tx).WithContext(ctx).
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&txn).Error

	if err != nil {
		return nil, err
	}

	return &txn, nil
}

// Settle flips a PENDING transaction to its terminal status. The status check
// and the write are one statement; false means it was already settled.
func (r *paymentTransactionRepoImpl) Settle(ctx context.Context, tx *gorm.DB, checkoutRequestID string, outcome Settlement) (bool, error) {
	result := r.conn(tx).WithContext(ctx).Model(&model.PaymentTransaction{}).
		Where("checkout_request_id = ? AND status = ?", checkoutRequestID, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":         outcome.Status,
			"result_code":    outcome.ResultCode,
			"result_desc":    outcome.ResultDesc,
			"receipt_number": outcome.ReceiptNumber,
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
