package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// PaymentTransaction is one outstanding STK push. Rows are written only after
// the gateway accepted the push and are settled exactly once by the callback.
type PaymentTransaction struct {
	ID                uint            `gorm:"primaryKey"`
	CheckoutRequestID string          `gorm:"size:128;uniqueIndex;not null"` // gateway request id
	MerchantRequestID string          `gorm:"size:128"`
	OrderID           uint            `gorm:"index;not null"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	PhoneNumber       string          `gorm:"size:32;not null"`
	Status            PaymentStatus   `gorm:"size:32;index;not null"`
	ResultCode        *int
	ResultDesc        *string `gorm:"size:255"`
	ReceiptNumber     *string `gorm:"size:64;index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
