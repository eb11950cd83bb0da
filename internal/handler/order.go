package handler

import (
	"net/http"
	"storecore/internal/dto"
	"storecore/internal/model"
	"storecore/internal/service"
	"strconv"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func orderIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	return uint(id), nil
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	items := make([]dto.OrderItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = dto.OrderItem{
			Sku:       item.ProductID,
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return dto.OrderResponse{
		OrderID:       order.ID,
		Status:        string(order.Status),
		BranchID:      order.BranchID,
		PaymentMethod: order.PaymentMethod,
		TotalAmount:   order.TotalAmount,
		AmountPaid:    order.AmountPaid,
		Balance:       order.Balance,
		Items:         items,
	}
}

func (h *OrderHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	items := make([]service.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item == nil {
			continue
		}
		items = append(items, service.CheckoutItem{ProductID: item.Sku, Quantity: item.Quantity})
	}

	order, err := h.orderService.CreateOrder(ctx, service.CheckoutRequest{
		Customer: service.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		BranchID:      req.BranchID,
		PaymentMethod: req.PaymentMethod,
		Items:         items,
		ExpectedTotal: req.ExpectedTotal,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	orderID, err := orderIDParam(c)
	if err != nil {
		return err
	}

	order, err := h.orderService.GetOrder(c.Request().Context(), orderID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) SetStatus(c echo.Context) error {
	orderID, err := orderIDParam(c)
	if err != nil {
		return err
	}

	var req dto.SetOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}

	order, err := h.orderService.SetOrderStatus(c.Request().Context(), orderID, model.OrderStatus(req.Status))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) ReplayMaterialization(c echo.Context) error {
	orderID, err := orderIDParam(c)
	if err != nil {
		return err
	}

	sale, err := h.orderService.ReplayMaterialization(c.Request().Context(), orderID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toSaleResponse(sale))
}

func (h *OrderHandler) ListDeadLetters(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	letters, err := h.orderService.ListDeadLetters(c.Request().Context(), limit)
	if err != nil {
		return httpError(err)
	}

	out := make([]dto.DeadLetter, len(letters))
	for i, l := range letters {
		out[i] = dto.DeadLetter{
			ID:        l.ID,
			Kind:      string(l.Kind),
			OrderID:   l.OrderID,
			Reference: l.Reference,
			Error:     l.Error,
			CreatedAt: l.CreatedAt,
		}
	}
	return c.JSON(http.StatusOK, out)
}
