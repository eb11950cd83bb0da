package server

import (
	"context"
	"net/http"
	"storecore/internal/config"
	"storecore/internal/handler"
	"storecore/internal/metrics"
	"storecore/internal/middleware"
	"storecore/internal/service"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Services struct {
	Orders       service.OrderService
	Mpesa        service.MpesaService
	Sales        service.SaleService
	Stock        service.StockService
	ExchangeRate service.ExchangeRateService
}

type Server struct {
	echo         *echo.Echo
	authSecret   string
	orderHandler *handler.OrderHandler
	mpesaHandler *handler.MpesaHandler
	saleHandler  *handler.SaleHandler
	stockHandler *handler.StockHandler
	fxHandler    *handler.ExchangeRateHandler
}

func NewServer(cfg *config.Config, services Services, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestID())
	e.Use(metrics.Middleware())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	s := &Server{
		echo:         e,
		authSecret:   cfg.Auth.JWTSecret,
		orderHandler: handler.NewOrderHandler(services.Orders),
		mpesaHandler: handler.NewMpesaHandler(services.Mpesa, logger),
		saleHandler:  handler.NewSaleHandler(services.Sales),
		stockHandler: handler.NewStockHandler(services.Stock),
		fxHandler:    handler.NewExchangeRateHandler(services.ExchangeRate, cfg.Sales.Currency),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/metrics", metrics.Handler())

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api.POST("/checkout", s.orderHandler.Checkout)
	api.GET("/fx", s.fxHandler.Rate)

	// -------- mpesa --------
	mpesa := api.Group("/mpesa")
	mpesa.POST("/stkpush", s.mpesaHandler.StkPush)
	mpesa.POST("/callback", s.mpesaHandler.Callback)

	// -------- pos --------
	pos := api.Group("/pos", middleware.OperatorAuth(s.authSecret, middleware.RoleCashier, middleware.RoleAdmin))
	pos.POST("/sales", s.saleHandler.CreateSale)

	// -------- admin --------
	admin := api.Group("/admin", middleware.OperatorAuth(s.authSecret, middleware.RoleAdmin))
	admin.GET("/orders/:id", s.orderHandler.GetOrder)
	admin.PATCH("/orders/:id/status", s.orderHandler.SetStatus)
	admin.POST("/orders/:id/replay", s.orderHandler.ReplayMaterialization)
	admin.GET("/dead-letters", s.orderHandler.ListDeadLetters)
	admin.GET("/sales/unsigned", s.saleHandler.ListUnsigned)
	admin.GET("/stock", s.stockHandler.List)
	admin.PUT("/stock", s.stockHandler.SetLevel)
	admin.POST("/stock/transfer", s.stockHandler.Transfer)
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
