package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
	OrderStatusFailed  OrderStatus = "FAILED"
	OrderStatusShipped OrderStatus = "SHIPPED"
)

// orderTransitions lists the statuses each status may move to. Status only
// moves forward: PENDING -> PAID|FAILED -> SHIPPED.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusFailed},
	OrderStatusPaid:    {OrderStatusShipped},
	OrderStatusFailed:  {OrderStatusShipped},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed, OrderStatusShipped:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID            uint            `gorm:"primaryKey"`
	CustomerName  string          `gorm:"size:128"`
	CustomerEmail string          `gorm:"size:255"`
	CustomerPhone string          `gorm:"size:32"`
	BranchID      string          `gorm:"size:64;index;not null"` // fulfilling branch
	PaymentMethod string          `gorm:"size:32;not null"`       // MPESA, CASH, COD
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	AmountPaid    decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Balance       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Status        OrderStatus     `gorm:"size:32;index;not null"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK → orders.id
	OrderID uint `gorm:"index;not null"`
	// FK → products.id
	ProductID   string          `gorm:"size:64;index;not null"`
	ProductName string          `gorm:"size:255;not null"`
	Quantity    int64           `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,2);not null"`

	CreatedAt time.Time
}
