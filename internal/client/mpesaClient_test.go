package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storecore/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPhoneNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0712345678", want: "254712345678"},
		{in: "+254 712 345 678", want: "254712345678"},
		{in: "254712345678", want: "254712345678"},
		{in: "712345678", want: "254712345678"},
		{in: "0112-345-678", want: "254112345678"},
		{in: "0812345678", wantErr: true},
		{in: "07123", wantErr: true},
		{in: "07l2345678", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := FormatPhoneNumber(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPassword(t *testing.T) {
	// base64("174379" + "pk" + "20240101120000")
	assert.Equal(t, "MTc0Mzc5cGsyMDI0MDEwMTEyMDAwMA==", Password("174379", "pk", "20240101120000"))
}

func newTestMpesaClient(url string) *mpesaClientImpl {
	c := NewMpesaClient(&config.Mpesa{
		BaseApiURL:     url,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		PassKey:        "pk",
		CallbackURL:    "https://shop.example/api/mpesa/callback",
		Timeout:        time.Second,
	}).(*mpesaClientImpl)
	c.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestRequestAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
	}))
	defer srv.Close()

	tok, err := newTestMpesaClient(srv.URL).RequestAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.Token)
	assert.Equal(t, 3599*time.Second, tok.ExpiresIn)

	bad := newTestMpesaClient(srv.URL)
	bad.consumerSecret = "wrong"
	_, err = bad.RequestAccessToken(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRequestAccessToken_ExpiresIn(t *testing.T) {
	body := ""
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	c := newTestMpesaClient(srv.URL)

	body = `{"access_token":"tok"}`
	tok, err := c.RequestAccessToken(context.Background())
	require.NoError(t, err)
	assert.Zero(t, tok.ExpiresIn)

	body = `{"access_token":"tok","expires_in":"soon"}`
	_, err = c.RequestAccessToken(context.Background())
	assert.ErrorContains(t, err, "expires_in")
}

func TestStkPush(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "20240101120000", body["Timestamp"])
		assert.Equal(t, "MTc0Mzc5cGsyMDI0MDEwMTEyMDAwMA==", body["Password"])
		assert.Equal(t, float64(4500), body["Amount"])
		assert.Equal(t, "254712345678", body["PhoneNumber"])

		_, _ = w.Write([]byte(`{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing"}`))
	}))
	defer srv.Close()

	resp, err := newTestMpesaClient(srv.URL).StkPush(context.Background(), "tok", &StkPushRequest{
		Phone:      "254712345678",
		Amount:     decimal.NewFromInt(4500),
		AccountRef: "ORDER-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", resp.CheckoutRequestID)
}

func TestStkPush_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"requestId":"r-1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid BusinessShortCode"}`))
	}))
	defer srv.Close()

	_, err := newTestMpesaClient(srv.URL).StkPush(context.Background(), "tok", &StkPushRequest{
		Phone:  "254712345678",
		Amount: decimal.NewFromInt(10),
	})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Request - Invalid BusinessShortCode", apiErr.Message)
}
