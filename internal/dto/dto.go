package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	Sku      string `json:"sku"`
	Quantity int64  `json:"quantity"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CheckoutRequest struct {
	Customer      Customer         `json:"customer"`
	BranchID      string           `json:"branch_id"`
	PaymentMethod string           `json:"payment_method"`
	Items         []*Item          `json:"items"`
	ExpectedTotal *decimal.Decimal `json:"expected_total,omitempty"`
}

type OrderItem struct {
	Sku       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderResponse struct {
	OrderID       uint            `json:"order_id"`
	Status        string          `json:"status"`
	BranchID      string          `json:"branch_id"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Balance       decimal.Decimal `json:"balance"`
	Items         []OrderItem     `json:"items"`
}

type StkPushRequest struct {
	OrderID     uint            `json:"order_id"`
	PhoneNumber string          `json:"phone_number"`
	Amount      decimal.Decimal `json:"amount"`
}

type StkPushResponse struct {
	CheckoutRequestID string `json:"checkout_request_id"`
	OrderID           uint   `json:"order_id"`
	Status            string `json:"status"`
	CustomerMessage   string `json:"customer_message"`
}

type SetOrderStatusRequest struct {
	Status string `json:"status"`
}

type SaleLine struct {
	Sku       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateSaleRequest struct {
	BranchID      string          `json:"branch_id"`
	Items         []*SaleLine     `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	Customer      *Customer       `json:"customer,omitempty"`
}

type SaleResponse struct {
	ReceiptNumber     string          `json:"receipt_number"`
	BranchID          string          `json:"branch_id"`
	CashierID         string          `json:"cashier_id"`
	OrderID           *uint           `json:"order_id,omitempty"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
	PaymentMethod     string          `json:"payment_method"`
	FiscalControlCode *string         `json:"fiscal_control_code"`
	FiscalQRCode      *string         `json:"fiscal_qr_code"`
	FiscalSignedAt    *time.Time      `json:"fiscal_signed_at"`
	CreatedAt         time.Time       `json:"created_at"`
}

type TransferRequest struct {
	Sku        string `json:"sku"`
	FromBranch string `json:"from_branch"`
	ToBranch   string `json:"to_branch"`
	Quantity   int64  `json:"quantity"`
}

type TransferResponse struct {
	TransferID string     `json:"transfer_id"`
	From       StockLevel `json:"from"`
	To         StockLevel `json:"to"`
}

type SetStockLevelRequest struct {
	Sku       string `json:"sku"`
	BranchID  string `json:"branch_id"`
	Quantity  int64  `json:"quantity"`
	Threshold int64  `json:"low_stock_threshold"`
}

type StockLevel struct {
	Sku               string `json:"sku"`
	BranchID          string `json:"branch_id"`
	Quantity          int64  `json:"quantity"`
	LowStockThreshold int64  `json:"low_stock_threshold"`
	Oversold          bool   `json:"oversold"`
}

type DeadLetter struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	OrderID   *uint     `json:"order_id,omitempty"`
	Reference string    `json:"reference"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

type ExchangeRateResponse struct {
	Base  string          `json:"base"`
	Quote string          `json:"quote"`
	Rate  decimal.Decimal `json:"rate"`
}
