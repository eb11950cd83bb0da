package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	paymentCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Payment gateway callbacks by outcome",
		},
		[]string{"outcome"}, // completed, failed, duplicate, unknown, error
	)

	salesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_created_total",
			Help: "Sales materialized, by payment method and fiscal signing state",
		},
		[]string{"payment_method", "fiscal"},
	)

	fiscalSigningTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiscal_signing_total",
			Help: "Fiscal device signing attempts by result",
		},
		[]string{"result"}, // signed, failed, skipped
	)

	stockAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_alerts_total",
			Help: "Stock entries that went low or negative after a sale",
		},
		[]string{"kind"},
	)

	deadLettersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_letters_total",
			Help: "Work items moved to the dead-letter log",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(paymentCallbacksTotal)
	prometheus.MustRegister(salesCreatedTotal)
	prometheus.MustRegister(fiscalSigningTotal)
	prometheus.MustRegister(stockAlertsTotal)
	prometheus.MustRegister(deadLettersTotal)
}

func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			status := strconv.Itoa(c.Response().Status)

			httpRequestsTotal.WithLabelValues(c.Request().Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

func RecordCallback(outcome string) {
	paymentCallbacksTotal.WithLabelValues(outcome).Inc()
}

func RecordSale(paymentMethod string, signed bool) {
	fiscal := "unsigned"
	if signed {
		fiscal = "signed"
	}
	salesCreatedTotal.WithLabelValues(paymentMethod, fiscal).Inc()
}

func RecordFiscal(result string) {
	fiscalSigningTotal.WithLabelValues(result).Inc()
}

func RecordStockAlert(kind string) {
	stockAlertsTotal.WithLabelValues(kind).Inc()
}

func RecordDeadLetter(kind string) {
	deadLettersTotal.WithLabelValues(kind).Inc()
}
