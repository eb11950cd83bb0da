package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"storecore/internal/config"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const darajaTimestampLayout = "20060102150405"

// ErrUnauthorized is returned when the gateway rejects the consumer credentials.
var ErrUnauthorized = errors.New("mpesa rejected consumer credentials")

// APIError is a structured rejection from the Daraja API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mpesa error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

type MpesaClient interface {
	RequestAccessToken(ctx context.Context) (*AccessToken, error)
	StkPush(ctx context.Context, accessToken string, req *StkPushRequest) (*StkPushResponse, error)
}

// AccessToken is a bearer token. A zero ExpiresIn means the gateway did not
// say how long it lives.
type AccessToken struct {
	Token     string        `json:"access_token"`
	ExpiresIn time.Duration `json:"expires_in"`
}

type StkPushRequest struct {
	Phone       string // already normalized
	Amount      decimal.Decimal
	AccountRef  string
	Description string
}

type StkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type darajaError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type mpesaClientImpl struct {
	httpClient     *http.Client
	baseApiURL     string
	consumerKey    string
	consumerSecret string
	shortCode      string
	passKey        string
	callbackURL    string
	now            func() time.Time
}

func NewMpesaClient(cfg *config.Mpesa) MpesaClient {
	return &mpesaClientImpl{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseApiURL:     strings.TrimRight(cfg.BaseApiURL, "/"),
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		shortCode:      cfg.ShortCode,
		passKey:        cfg.PassKey,
		callbackURL:    cfg.CallbackURL,
		now:            time.Now,
	}
}

func (c *mpesaClientImpl) RequestAccessToken(ctx context.Context) (*AccessToken, error) {
	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.consumerKey + ":" + c.consumerSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseApiURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mpesa token error %d: %s", resp.StatusCode, string(b))
	}

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if res.AccessToken == "" {
		return nil, ErrUnauthorized
	}

	token := &AccessToken{Token: res.AccessToken}
	if res.ExpiresIn != "" {
		seconds, err := strconv.Atoi(res.ExpiresIn)
		if err != nil {
			return nil, fmt.Errorf("parse token expires_in %q: %w", res.ExpiresIn, err)
		}
		token.ExpiresIn = time.Duration(seconds) * time.Second
	}
	return token, nil
}

func (c *mpesaClientImpl) StkPush(ctx context.Context, accessToken string, in *StkPushRequest) (*StkPushResponse, error) {
	timestamp := c.now().Format(darajaTimestampLayout)

	payload := map[string]interface{}{
		"BusinessShortCode": c.shortCode,
		"Password":          Password(c.shortCode, c.passKey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            in.Amount.IntPart(), // whole shillings, checked by the caller
		"PartyA":            in.Phone,
		"PartyB":            c.shortCode,
		"PhoneNumber":       in.Phone,
		"CallBackURL":       c.callbackURL,
		"AccountReference":  in.AccountRef,
		"TransactionDesc":   in.Description,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/mpesa/stkpush/v1/processrequest",
		bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mpesa stk push request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read stk push response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var de darajaError
		if err := json.Unmarshal(raw, &de); err != nil || de.ErrorMessage == "" {
			de.ErrorMessage = string(raw)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Code: de.ErrorCode, Message: de.ErrorMessage}
	}

	var result StkPushResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode stk push response: %w", err)
	}
	if result.ResponseCode != "0" || result.CheckoutRequestID == "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: result.ResponseCode, Message: result.ResponseDescription}
	}

	return &result, nil
}

// Password is the STK push password: base64(shortcode + passkey + timestamp).
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// FormatPhoneNumber normalizes Kenyan MSISDNs to the 2547XXXXXXXX form the
// gateway expects. Accepts 07.., 01.., 7.., +254.., 254.. with spaces or dashes.
func FormatPhoneNumber(phone string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		if r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return 'x'
	}, strings.TrimSpace(phone))

	if strings.ContainsRune(digits, 'x') {
		return "", fmt.Errorf("invalid phone number %q", phone)
	}

	switch {
	case strings.HasPrefix(digits, "254") && len(digits) == 12:
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		digits = "254" + digits[1:]
	case (strings.HasPrefix(digits, "7") || strings.HasPrefix(digits, "1")) && len(digits) == 9:
		digits = "254" + digits
	default:
		return "", fmt.Errorf("invalid phone number %q", phone)
	}

	if digits[3] != '7' && digits[3] != '1' {
		return "", fmt.Errorf("invalid phone number %q", phone)
	}
	return digits, nil
}
