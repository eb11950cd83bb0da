package handler

import (
	"net/http"
	"storecore/internal/dto"
	"storecore/internal/model"
	"storecore/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type MpesaHandler struct {
	mpesaService service.MpesaService
	logger       *zap.Logger
}

func NewMpesaHandler(mpesaService service.MpesaService, logger *zap.Logger) *MpesaHandler {
	return &MpesaHandler{
		mpesaService: mpesaService,
		logger:       logger,
	}
}

func (h *MpesaHandler) StkPush(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.StkPushRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if req.OrderID == 0 || req.PhoneNumber == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "order_id and phone_number are required")
	}

	txn, err := h.mpesaService.InitiatePush(ctx, req.OrderID, req.PhoneNumber, req.Amount)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.StkPushResponse{
		CheckoutRequestID: txn.CheckoutRequestID,
		OrderID:           txn.OrderID,
		Status:            string(txn.Status),
		CustomerMessage:   "Check your phone to authorize the payment",
	})
}

// Callback always acknowledges. A non-2xx answer makes the gateway retry the
// same notification indefinitely; failures are logged and dead-lettered instead.
func (h *MpesaHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()
	ack := model.StkCallbackAck{ResultCode: 0, ResultDesc: "Accepted"}

	var payload model.StkCallbackEnvelope
	if err := c.Bind(&payload); err != nil {
		h.logger.Error("undecodable stk callback", zap.Error(err))
		return c.JSON(http.StatusOK, ack)
	}

	if err := h.mpesaService.HandleCallback(ctx, &payload); err != nil {
		h.logger.Error("handle stk callback",
			zap.String("checkout_request_id", payload.Body.StkCallback.CheckoutRequestID),
			zap.Error(err),
		)
	}

	return c.JSON(http.StatusOK, ack)
}
