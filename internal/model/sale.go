package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrSaleImmutable = errors.New("sale records are immutable")

// SaleItem is a frozen copy of a sold line, decoupled from the live product row.
type SaleItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Sale struct {
	ID            uint                          `gorm:"primaryKey"`
	ReceiptNumber string                        `gorm:"size:64;uniqueIndex;not null"`
	OrderID       *uint                         `gorm:"uniqueIndex"` // nil for walk-in sales
	BranchID      string                        `gorm:"size:64;index;not null"`
	CashierID     string                        `gorm:"size:64;not null"`
	CustomerName  *string                       `gorm:"size:128"`
	CustomerPhone *string                       `gorm:"size:32"`
	TotalAmount   decimal.Decimal               `gorm:"type:decimal(20,2);not null"`
	NetAmount     decimal.Decimal               `gorm:"type:decimal(20,2);not null"`
	TaxAmount     decimal.Decimal               `gorm:"type:decimal(20,2);not null"`
	PaymentMethod string                        `gorm:"size:32;not null"`
	Items         datatypes.JSONSlice[SaleItem] `gorm:"not null"`

	// Fiscal fields stay nil when the device could not sign.
	FiscalControlCode *string `gorm:"size:128;index"`
	FiscalSignature   *string `gorm:"type:text"`
	FiscalQRCode      *string `gorm:"type:text"`
	FiscalSignedAt    *time.Time

	CreatedAt time.Time
}

func (s *Sale) Signed() bool {
	return s.FiscalControlCode != nil
}

func (s *Sale) BeforeUpdate(tx *gorm.DB) error {
	return ErrSaleImmutable
}

func (s *Sale) BeforeDelete(tx *gorm.DB) error {
	return ErrSaleImmutable
}
