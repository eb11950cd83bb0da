package model

import "time"

// StockEntry is the quantity of one product at one branch. Quantity may go
// negative when a paid sale oversells.
type StockEntry struct {
	ID                uint   `gorm:"primaryKey"`
	ProductID         string `gorm:"size:64;not null;uniqueIndex:idx_stock_product_branch,priority:1"`
	BranchID          string `gorm:"size:64;not null;uniqueIndex:idx_stock_product_branch,priority:2"`
	Quantity          int64  `gorm:"not null"`
	LowStockThreshold int64  `gorm:"not null;default:0"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (e *StockEntry) Oversold() bool {
	return e.Quantity < 0
}

func (e *StockEntry) Low() bool {
	return e.Quantity <= e.LowStockThreshold
}

type MovementKind string

const (
	MovementSale        MovementKind = "SALE"
	MovementTransferOut MovementKind = "TRANSFER_OUT"
	MovementTransferIn  MovementKind = "TRANSFER_IN"
	MovementAdjustment  MovementKind = "ADJUSTMENT"
)

// StockMovement is the append-only audit trail of stock changes.
type StockMovement struct {
	ID            uint         `gorm:"primaryKey"`
	ReferenceID   string       `gorm:"size:64;index;not null"` // transfer id or receipt number
	Kind          MovementKind `gorm:"size:32;index;not null"`
	ProductID     string       `gorm:"size:64;index:idx_movement_product_branch,priority:1;not null"`
	BranchID      string       `gorm:"size:64;index:idx_movement_product_branch,priority:2;not null"`
	Delta         int64        `gorm:"not null"`
	QuantityAfter int64        `gorm:"not null"`
	Actor         string       `gorm:"size:64"`
	CreatedAt     time.Time
}
