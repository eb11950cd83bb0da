// Package notify carries customer and back-office notifications out of the
// payment and inventory core. Each kind has a fixed payload and its own topic.
package notify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindOrderPaid     Kind = "order_paid"
	KindPaymentFailed Kind = "payment_failed"
	KindStockAlert    Kind = "stock_alert"
	KindSaleRecorded  Kind = "sale_recorded"
)

var Kinds = []Kind{KindOrderPaid, KindPaymentFailed, KindStockAlert, KindSaleRecorded}

type Notification interface {
	Kind() Kind
	// Key orders messages for the same entity onto one partition.
	Key() string
}

type OrderPaid struct {
	OrderID       uint            `json:"order_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`
	Amount        decimal.Decimal `json:"amount"`
	GatewayRef    string          `json:"gateway_ref"`
}

func (OrderPaid) Kind() Kind { return KindOrderPaid }
func (n OrderPaid) Key() string { return orderKey(n.OrderID) }

type PaymentFailed struct {
	OrderID           uint   `json:"order_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
	CustomerPhone     string `json:"customer_phone"`
	Reason            string `json:"reason"`
}

func (PaymentFailed) Kind() Kind { return KindPaymentFailed }
func (n PaymentFailed) Key() string { return orderKey(n.OrderID) }

type StockAlert struct {
	ProductID string `json:"product_id"`
	BranchID  string `json:"branch_id"`
	Quantity  int64  `json:"quantity"`
	Threshold int64  `json:"threshold"`
	Oversold  bool   `json:"oversold"`
}

func (StockAlert) Kind() Kind { return KindStockAlert }
func (n StockAlert) Key() string { return n.BranchID + "/" + n.ProductID }

type SaleRecorded struct {
	ReceiptNumber string          `json:"receipt_number"`
	BranchID      string          `json:"branch_id"`
	OrderID       *uint           `json:"order_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	Signed        bool            `json:"signed"`
}

func (SaleRecorded) Kind() Kind { return KindSaleRecorded }
func (n SaleRecorded) Key() string { return n.ReceiptNumber }

func orderKey(id uint) string {
	return "order-" + strconv.FormatUint(uint64(id), 10)
}

// Envelope is the wire form of a notification.
type Envelope struct {
	Kind       Kind            `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func Encode(n Notification, at time.Time) ([]byte, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", n.Kind(), err)
	}
	return json.Marshal(Envelope{Kind: n.Kind(), OccurredAt: at, Payload: payload})
}

func Decode(raw []byte) (Notification, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var n Notification
	switch env.Kind {
	case KindOrderPaid:
		var v OrderPaid
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		n = v
	case KindPaymentFailed:
		var v PaymentFailed
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		n = v
	case KindStockAlert:
		var v StockAlert
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		n = v
	case KindSaleRecorded:
		var v SaleRecorded
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, err
		}
		n = v
	default:
		return nil, fmt.Errorf("unknown notification kind %q", env.Kind)
	}
	return n, nil
}

func Topic(prefix string, kind Kind) string {
	return prefix + "." + string(kind)
}
