package handler

import (
	"errors"
	"net/http"
	"storecore/internal/service"

	"github.com/labstack/echo/v4"
)

// httpError maps service errors onto HTTP responses. Unknown errors are
// returned as-is so echo reports a 500 and the request logger records them.
func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error()).SetInternal(err)
	case errors.Is(err, service.ErrUnknownProduct),
		errors.Is(err, service.ErrUnknownBranch),
		errors.Is(err, service.ErrInvalidOrder),
		errors.Is(err, service.ErrInvalidSale),
		errors.Is(err, service.ErrInvalidTransfer),
		errors.Is(err, service.ErrInvalidPayment):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error()).SetInternal(err)
	case errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrInvalidStatusTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error()).SetInternal(err)
	case errors.Is(err, service.ErrGatewayRejected),
		errors.Is(err, service.ErrUpstreamAuth):
		return echo.NewHTTPError(http.StatusBadGateway, service.ErrGatewayRejected.Error()).SetInternal(err)
	case errors.Is(err, service.ErrTransactionIntegrity):
		return echo.NewHTTPError(http.StatusServiceUnavailable, service.ErrTransactionIntegrity.Error()).SetInternal(err)
	}
	return err
}

func bindError(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, "invalid req body").SetInternal(err)
}
