package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Branch struct {
	ID        string `gorm:"primaryKey;size:64;not null"` // branch code, e.g. NBO-01
	Name      string `gorm:"size:128;not null"`
	IsActive  bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID        string          `gorm:"primaryKey;size:64;not null"` // product sku
	Name      string          `gorm:"size:255;not null"`
	Price     decimal.Decimal `gorm:"type:decimal(20,2);not null"` // VAT inclusive
	IsActive  bool            `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
