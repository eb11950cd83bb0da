package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storecore/internal/config"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestServer_PublicAndProtectedRoutes(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "secret"
	cfg.Sales.Currency = "KES"
	srv := NewServer(cfg, Services{}, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/stock/transfer", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pos/sales", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
