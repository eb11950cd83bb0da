package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"storecore/internal/cache"
	"storecore/internal/client"
	"storecore/internal/config"
	"storecore/internal/model"
	"storecore/internal/notify"
	"storecore/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var testSalesConfig = config.Sales{
	VATRate:        "0.16",
	OnlineBranchID: "online",
	SystemCashier:  "system",
	Currency:       "KES",
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (n *recordingNotifier) Enqueue(_ context.Context, msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) ofKind(kind notify.Kind) []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Notification
	for _, msg := range n.sent {
		if msg.Kind() == kind {
			out = append(out, msg)
		}
	}
	return out
}

type stubSigner struct {
	mu    sync.Mutex
	sig   *client.FiscalSignature
	calls int
}

func (s *stubSigner) SignInvoice(context.Context, string, []client.FiscalItem, decimal.Decimal) *client.FiscalSignature {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.sig
}

type stubMpesa struct {
	mu         sync.Mutex
	token      string
	tokenErr   error
	tokenCalls int
	tokenLife  time.Duration
	pushErrs   []error
	pushCalls  int
	lastPush   *client.StkPushRequest
	checkoutID string
}

func (m *stubMpesa) RequestAccessToken(context.Context) (*client.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenCalls++
	if m.tokenErr != nil {
		return nil, m.tokenErr
	}
	life := m.tokenLife
	if life == 0 {
		life = time.Hour
	}
	return &client.AccessToken{Token: m.token, ExpiresIn: life}, nil
}

func (m *stubMpesa) StkPush(_ context.Context, _ string, req *client.StkPushRequest) (*client.StkPushResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushCalls++
	m.lastPush = req
	if len(m.pushErrs) > 0 {
		err := m.pushErrs[0]
		m.pushErrs = m.pushErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &client.StkPushResponse{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: m.checkoutID,
		ResponseCode:      "0",
	}, nil
}

// mapStore is an in-process cache.Store.
type mapStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{values: map[string][]byte{}}
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *mapStore) DeletePattern(_ context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.values {
		if key == pattern || (strings.HasSuffix(pattern, "*") && strings.HasPrefix(key, prefix)) {
			delete(s.values, key)
		}
	}
	return nil
}

type fixture struct {
	db       *gorm.DB
	logger   *zap.Logger
	notifier *recordingNotifier
	signer   *stubSigner
	mpesa    *stubMpesa
	store    *mapStore

	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentTransactionRepository
	saleRepo    repository.SaleRepository
	stockRepo   repository.StockRepository
	deadLetters repository.DeadLetterRepository

	sales  SaleService
	stock  StockService
	orders OrderService
	mpesaS MpesaService

	failSales *failSwitch
}

// failSwitch makes inserts into the sales table fail while on.
type failSwitch struct {
	mu sync.Mutex
	on bool
}

func (f *failSwitch) set(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = on
}

func (f *failSwitch) enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

var errInjected = errors.New("injected sale insert failure")

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	db, err := client.InitDBClient(config.Database{
		Driver:       "sqlite",
		URL:          ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	f := &fixture{
		db:        db,
		logger:    logger,
		notifier:  &recordingNotifier{},
		signer:    &stubSigner{},
		mpesa:     &stubMpesa{token: "token-1", checkoutID: "ws_CO_O1"},
		store:     newMapStore(),
		failSales: &failSwitch{},
	}

	err = db.Callback().Create().Before("gorm:create").Register("test:fail_sales", func(tx *gorm.DB) {
		if f.failSales.enabled() && tx.Statement.Schema != nil && tx.Statement.Schema.Table == "sales" {
			_ = tx.AddError(errInjected)
		}
	})
	require.NoError(t, err)

	ctx := context.Background()
	branchRepo := repository.NewBranchRepository(db)
	productRepo := repository.NewProductRepository(db)
	require.NoError(t, branchRepo.Seed(ctx, testSalesConfig.OnlineBranchID))
	require.NoError(t, productRepo.Seed(ctx))

	f.orderRepo = repository.NewOrderRepository(db)
	f.paymentRepo = repository.NewPaymentTransactionRepository(db)
	f.saleRepo = repository.NewSaleRepository(db)
	f.stockRepo = repository.NewStockRepository(db)
	f.deadLetters = repository.NewDeadLetterRepository(db)

	f.sales, err = NewSaleService(db, testSalesConfig, f.signer, f.saleRepo, f.stockRepo, branchRepo, f.deadLetters, f.notifier, logger)
	require.NoError(t, err)
	f.stock = NewStockService(db, f.stockRepo, branchRepo, productRepo, f.deadLetters, f.notifier, logger)
	f.orders = NewOrderService(db, testSalesConfig, f.sales, f.orderRepo, productRepo, branchRepo, f.saleRepo, f.deadLetters, f.notifier, logger)
	f.mpesaS = NewMpesaService(db, config.Mpesa{TokenTTL: 55 * time.Minute}, f.mpesa,
		cache.NewAccessor(f.store, logger), f.orders, f.orderRepo, f.paymentRepo, f.deadLetters, f.notifier, logger)

	return f
}

func (f *fixture) stockLevel(t *testing.T, productID, branchID string, quantity int64) {
	t.Helper()
	_, err := f.stock.SetStockLevel(context.Background(), StockLevelRequest{
		ProductID: productID,
		BranchID:  branchID,
		Quantity:  quantity,
		Actor:     "test",
	})
	require.NoError(t, err)
}

func (f *fixture) quantity(t *testing.T, productID, branchID string) int64 {
	t.Helper()
	entry, err := f.stock.GetStock(context.Background(), productID, branchID)
	require.NoError(t, err)
	return entry.Quantity
}

func (f *fixture) countSales(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&model.Sale{}).Count(&count).Error)
	return count
}

// checkoutO1 creates an order for 18 x 250 = 4500 at the online branch.
func (f *fixture) checkoutO1(t *testing.T) *model.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), CheckoutRequest{
		Customer:      Customer{Name: "Wanjiku", Email: "wanjiku@example.com", Phone: "0712345678"},
		PaymentMethod: PaymentMethodMpesa,
		Items:         []CheckoutItem{{ProductID: "tusker-500", Quantity: 18}},
	})
	require.NoError(t, err)
	return order
}

func successCallback(checkoutID, receipt string, amount float64) *model.StkCallbackEnvelope {
	env := &model.StkCallbackEnvelope{}
	env.Body.StkCallback = model.StkCallback{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: checkoutID,
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		CallbackMetadata: &model.CallbackMetadata{Item: []model.CallbackItem{
			{Name: "Amount", Value: amount},
			{Name: "MpesaReceiptNumber", Value: receipt},
			{Name: "TransactionDate", Value: float64(20240101120000)},
			{Name: "PhoneNumber", Value: float64(254712345678)},
		}},
	}
	return env
}

func failedCallback(checkoutID string, code int, desc string) *model.StkCallbackEnvelope {
	env := &model.StkCallbackEnvelope{}
	env.Body.StkCallback = model.StkCallback{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: checkoutID,
		ResultCode:        code,
		ResultDesc:        desc,
	}
	return env
}
