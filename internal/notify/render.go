package notify

import (
	"fmt"
	"strconv"
)

// Message is a rendered customer or staff message.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Render turns a notification into the text sent to its recipient. staff is
// the address stock alerts go to.
func Render(n Notification, currency, staff string) (Message, error) {
	switch v := n.(type) {
	case OrderPaid:
		to := v.CustomerEmail
		if to == "" {
			to = v.CustomerPhone
		}
		return Message{
			To:      to,
			Subject: fmt.Sprintf("Payment received for order #%d", v.OrderID),
			Body: fmt.Sprintf("Hi %s, we received %s %s for order #%d (ref %s). We are preparing it now.",
				nameOr(v.CustomerName), currency, v.Amount.StringFixed(2), v.OrderID, v.GatewayRef),
		}, nil
	case PaymentFailed:
		return Message{
			To:      v.CustomerPhone,
			Subject: fmt.Sprintf("Payment for order #%d did not go through", v.OrderID),
			Body:    fmt.Sprintf("Your M-Pesa payment for order #%d failed: %s. You can try again from your order page.", v.OrderID, v.Reason),
		}, nil
	case StockAlert:
		state := "is low"
		if v.Oversold {
			state = "is oversold"
		}
		return Message{
			To:      staff,
			Subject: fmt.Sprintf("Stock alert: %s at %s", v.ProductID, v.BranchID),
			Body: fmt.Sprintf("%s at branch %s %s: %s on hand, threshold %s.",
				v.ProductID, v.BranchID, state, strconv.FormatInt(v.Quantity, 10), strconv.FormatInt(v.Threshold, 10)),
		}, nil
	case SaleRecorded:
		fiscal := "signed"
		if !v.Signed {
			fiscal = "UNSIGNED, pending fiscal reconciliation"
		}
		return Message{
			To:      staff,
			Subject: "Sale " + v.ReceiptNumber,
			Body: fmt.Sprintf("Sale %s at %s for %s %s via %s (%s).",
				v.ReceiptNumber, v.BranchID, currency, v.Total.StringFixed(2), v.PaymentMethod, fiscal),
		}, nil
	}
	return Message{}, fmt.Errorf("no template for notification kind %q", n.Kind())
}

func nameOr(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
