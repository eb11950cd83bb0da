package service

import (
	"errors"
	"fmt"
)

var (
	ErrUpstreamAuth            = errors.New("payment gateway rejected credentials")
	ErrGatewayRejected         = errors.New("payment could not be initiated")
	ErrInvalidPayment          = errors.New("order cannot be paid with this request")
	ErrInvalidOrder            = errors.New("invalid order")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrInvalidSale             = errors.New("invalid sale")
	ErrUnknownProduct          = errors.New("unknown product")
	ErrUnknownBranch           = errors.New("unknown branch")
	ErrInvalidTransfer         = errors.New("invalid stock transfer")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrTransactionIntegrity    = errors.New("transaction failed, please retry")
)

// GatewayRejectedError carries the gateway's own explanation for a refused push.
type GatewayRejectedError struct {
	Message string
	Cause   error
}

func (e *GatewayRejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrGatewayRejected, e.Message)
}

func (e *GatewayRejectedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrGatewayRejected}
	}
	return []error{ErrGatewayRejected, e.Cause}
}

// businessErrors are returned from inside a unit of work on purpose and pass
// through unchanged.
var businessErrors = []error{
	ErrInsufficientStock,
	ErrUnknownBranch,
	ErrUnknownProduct,
	ErrInvalidTransfer,
	ErrInvalidSale,
	ErrInvalidOrder,
	ErrInvalidStatusTransition,
	ErrOrderNotFound,
}

// unitOfWorkError classifies an error returned by a database transaction.
// Anything that is not a business rejection means the transaction did not
// commit and the caller may retry.
func unitOfWorkError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range businessErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrTransactionIntegrity, err)
}
