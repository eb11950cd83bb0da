package handler

import (
	"net/http"
	"storecore/internal/dto"
	"storecore/internal/middleware"
	"storecore/internal/model"
	"storecore/internal/service"

	"github.com/labstack/echo/v4"
)

type StockHandler struct {
	stockService service.StockService
}

func NewStockHandler(stockService service.StockService) *StockHandler {
	return &StockHandler{
		stockService: stockService,
	}
}

func toStockLevel(entry *model.StockEntry) dto.StockLevel {
	return dto.StockLevel{
		Sku:               entry.ProductID,
		BranchID:          entry.BranchID,
		Quantity:          entry.Quantity,
		LowStockThreshold: entry.LowStockThreshold,
		Oversold:          entry.Oversold(),
	}
}

func (h *StockHandler) Transfer(c echo.Context) error {
	var req dto.TransferRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	result, err := h.stockService.TransferStock(c.Request().Context(), service.TransferRequest{
		ProductID:  req.Sku,
		FromBranch: req.FromBranch,
		ToBranch:   req.ToBranch,
		Quantity:   req.Quantity,
		Actor:      middleware.OperatorID(c),
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.TransferResponse{
		TransferID: result.TransferID,
		From:       toStockLevel(result.From),
		To:         toStockLevel(result.To),
	})
}

func (h *StockHandler) SetLevel(c echo.Context) error {
	var req dto.SetStockLevelRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	entry, err := h.stockService.SetStockLevel(c.Request().Context(), service.StockLevelRequest{
		ProductID: req.Sku,
		BranchID:  req.BranchID,
		Quantity:  req.Quantity,
		Threshold: req.Threshold,
		Actor:     middleware.OperatorID(c),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toStockLevel(entry))
}

// List returns one pair when sku is given, otherwise the whole branch.
func (h *StockHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	branchID := c.QueryParam("branch_id")
	if branchID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "branch_id is required")
	}

	if sku := c.QueryParam("sku"); sku != "" {
		entry, err := h.stockService.GetStock(ctx, sku, branchID)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, toStockLevel(entry))
	}

	entries, err := h.stockService.ListStock(ctx, branchID)
	if err != nil {
		return httpError(err)
	}
	out := make([]dto.StockLevel, len(entries))
	for i, entry := range entries {
		out[i] = toStockLevel(entry)
	}
	return c.JSON(http.StatusOK, out)
}
