package handler

import (
	"net/http"
	"storecore/internal/dto"
	"storecore/internal/service"
	"strings"

	"github.com/labstack/echo/v4"
)

type ExchangeRateHandler struct {
	fxService    service.ExchangeRateService
	baseCurrency string
}

func NewExchangeRateHandler(fxService service.ExchangeRateService, baseCurrency string) *ExchangeRateHandler {
	return &ExchangeRateHandler{
		fxService:    fxService,
		baseCurrency: baseCurrency,
	}
}

func (h *ExchangeRateHandler) Rate(c echo.Context) error {
	base := c.QueryParam("base")
	if base == "" {
		base = h.baseCurrency
	}
	quote := c.QueryParam("quote")
	if quote == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "quote is required")
	}

	rate, err := h.fxService.Rate(c.Request().Context(), base, quote)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "exchange rate unavailable").SetInternal(err)
	}

	return c.JSON(http.StatusOK, dto.ExchangeRateResponse{
		Base:  strings.ToUpper(base),
		Quote: strings.ToUpper(quote),
		Rate:  rate,
	})
}
