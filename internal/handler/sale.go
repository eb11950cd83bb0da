package handler

import (
	"fmt"
	"net/http"
	"storecore/internal/dto"
	"storecore/internal/middleware"
	"storecore/internal/model"
	"storecore/internal/service"
	"strconv"

	"github.com/labstack/echo/v4"
)

type SaleHandler struct {
	saleService service.SaleService
}

func NewSaleHandler(saleService service.SaleService) *SaleHandler {
	return &SaleHandler{
		saleService: saleService,
	}
}

func toSaleResponse(sale *model.Sale) dto.SaleResponse {
	return dto.SaleResponse{
		ReceiptNumber:     sale.ReceiptNumber,
		BranchID:          sale.BranchID,
		CashierID:         sale.CashierID,
		OrderID:           sale.OrderID,
		TotalAmount:       sale.TotalAmount,
		NetAmount:         sale.NetAmount,
		TaxAmount:         sale.TaxAmount,
		PaymentMethod:     sale.PaymentMethod,
		FiscalControlCode: sale.FiscalControlCode,
		FiscalQRCode:      sale.FiscalQRCode,
		FiscalSignedAt:    sale.FiscalSignedAt,
		CreatedAt:         sale.CreatedAt,
	}
}

// CreateSale records a walk-in POS sale for the authenticated cashier.
func (h *SaleHandler) CreateSale(c echo.Context) error {
	var req dto.CreateSaleRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	lines := make([]service.SaleLine, 0, len(req.Items))
	for i, item := range req.Items {
		if item == nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("items[%d] is null", i))
		}
		lines = append(lines, service.SaleLine{
			ProductID: item.Sku,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	sr := service.SaleRequest{
		BranchID:      req.BranchID,
		CashierID:     middleware.OperatorID(c),
		Items:         lines,
		TotalAmount:   req.TotalAmount,
		PaymentMethod: req.PaymentMethod,
	}
	if req.Customer != nil {
		sr.Customer = &service.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		}
	}

	sale, err := h.saleService.CreateSale(c.Request().Context(), sr)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, toSaleResponse(sale))
}

func (h *SaleHandler) ListUnsigned(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	sales, err := h.saleService.ListUnsignedSales(c.Request().Context(), limit)
	if err != nil {
		return httpError(err)
	}

	out := make([]dto.SaleResponse, len(sales))
	for i, sale := range sales {
		out[i] = toSaleResponse(sale)
	}
	return c.JSON(http.StatusOK, out)
}
