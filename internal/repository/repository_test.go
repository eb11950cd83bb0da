package repository

import (
	"context"
	"errors"
	"testing"

	"storecore/internal/client"
	"storecore/internal/config"
	"storecore/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := client.InitDBClient(config.Database{
		Driver:       "sqlite",
		URL:          ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

func createOrder(t *testing.T, db *gorm.DB, status model.OrderStatus) *model.Order {
	t.Helper()
	order := &model.Order{
		CustomerName:  "Wanjiku",
		CustomerPhone: "254712345678",
		BranchID:      "online",
		PaymentMethod: "MPESA",
		TotalAmount:   decimal.NewFromInt(4500),
		AmountPaid:    decimal.Zero,
		Balance:       decimal.NewFromInt(4500),
		Status:        status,
		Items: []model.OrderItem{
			{ProductID: "sku-1", ProductName: "Widget", Quantity: 3, UnitPrice: decimal.NewFromInt(1500)},
		},
	}
	require.NoError(t, NewOrderRepository(db).Create(context.Background(), nil, order))
	return order
}

func TestOrderRepository_CreateAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	order := createOrder(t, db, model.OrderStatusPending)

	found, err := repo.FindByID(context.Background(), nil, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "sku-1", found.Items[0].ProductID)
	assert.True(t, decimal.NewFromInt(4500).Equal(found.TotalAmount))

	_, err = repo.FindByID(context.Background(), nil, order.ID+100)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrderRepository_MarkPaidOnlyOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	order := createOrder(t, db, model.OrderStatusPending)
	ctx := context.Background()

	won, err := repo.MarkPaid(ctx, nil, order.ID, order.TotalAmount, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.MarkPaid(ctx, nil, order.ID, order.TotalAmount, decimal.Zero)
	require.NoError(t, err)
	assert.False(t, won)

	found, err := repo.FindByID(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, found.Status)
	assert.True(t, found.Balance.IsZero())
}

func TestOrderRepository_CompareAndSetStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrderRepository(db)
	order := createOrder(t, db, model.OrderStatusPaid)
	ctx := context.Background()

	ok, err := repo.CompareAndSetStatus(ctx, nil, order.ID, model.OrderStatusPending, model.OrderStatusFailed)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.CompareAndSetStatus(ctx, nil, order.ID, model.OrderStatusPaid, model.OrderStatusShipped)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPaymentTransactionRepository_SettleOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewPaymentTransactionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, nil, &model.PaymentTransaction{
		CheckoutRequestID: "ws_CO_1",
		OrderID:           1,
		Amount:            decimal.NewFromInt(4500),
		PhoneNumber:       "254712345678",
		Status:            model.PaymentStatusPending,
	}))

	receipt := "RJA1K2L"
	settled, err := repo.Settle(ctx, nil, "ws_CO_1", Settlement{
		Status:        model.PaymentStatusCompleted,
		ResultDesc:    "The service request is processed successfully.",
		ReceiptNumber: &receipt,
	})
	require.NoError(t, err)
	assert.True(t, settled)

	settled, err = repo.Settle(ctx, nil, "ws_CO_1", Settlement{Status: model.PaymentStatusFailed, ResultCode: 1032})
	require.NoError(t, err)
	assert.False(t, settled)

	txn, err := repo.FindByCheckoutRequestID(ctx, nil, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, txn.Status)
	require.NotNil(t, txn.ReceiptNumber)
	assert.Equal(t, "RJA1K2L", *txn.ReceiptNumber)
	require.NotNil(t, txn.ResultCode)
	assert.Equal(t, 0, *txn.ResultCode)
}

func TestPaymentTransactionRepository_UniqueCheckoutRequest(t *testing.T) {
	db := newTestDB(t)
	repo := NewPaymentTransactionRepository(db)
	ctx := context.Background()

	txn := func() *model.PaymentTransaction {
		return &model.PaymentTransaction{
			CheckoutRequestID: "ws_CO_dup",
			OrderID:           1,
			Amount:            decimal.NewFromInt(10),
			PhoneNumber:       "254712345678",
			Status:            model.PaymentStatusPending,
		}
	}
	require.NoError(t, repo.Create(ctx, nil, txn()))
	assert.Error(t, repo.Create(ctx, nil, txn()))
}

func TestSaleRepository_OnePerOrderAndImmutable(t *testing.T) {
	db := newTestDB(t)
	repo := NewSaleRepository(db)
	ctx := context.Background()
	orderID := uint(42)

	newSale := func(receipt string) *model.Sale {
		return &model.Sale{
			ReceiptNumber: receipt,
			OrderID:       &orderID,
			BranchID:      "online",
			CashierID:     "system",
			TotalAmount:   decimal.NewFromInt(116),
			NetAmount:     decimal.NewFromInt(100),
			TaxAmount:     decimal.NewFromInt(16),
			PaymentMethod: "MPESA",
			Items: []model.SaleItem{
				{ProductID: "sku-1", Name: "Widget", Quantity: 1, UnitPrice: decimal.NewFromInt(116), LineTotal: decimal.NewFromInt(116)},
			},
		}
	}

	sale := newSale("RCP-1")
	require.NoError(t, repo.Create(ctx, nil, sale))
	assert.Error(t, repo.Create(ctx, nil, newSale("RCP-2")))

	count, err := repo.CountByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	found, err := repo.FindByReceipt(ctx, "RCP-1")
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Widget", found.Items[0].Name)

	err = db.Model(found).Update("total_amount", decimal.NewFromInt(1)).Error
	assert.True(t, errors.Is(err, model.ErrSaleImmutable))

	unsigned, err := repo.ListUnsigned(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, unsigned, 1)
}

func TestStockRepository_LockEntryCreatesMissingRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewStockRepository(db)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		entry, err := repo.LockEntry(ctx, tx, "sku-1", "NBO-01")
		if err != nil {
			return err
		}
		assert.Equal(t, int64(0), entry.Quantity)
		return repo.Adjust(ctx, tx, entry, -2)
	})
	require.NoError(t, err)

	entry, err := repo.Find(ctx, "sku-1", "NBO-01")
	require.NoError(t, err)
	assert.Equal(t, int64(-2), entry.Quantity)
	assert.True(t, entry.Oversold())

	err = db.Transaction(func(tx *gorm.DB) error {
		again, err := repo.LockEntry(ctx, tx, "sku-1", "NBO-01")
		if err != nil {
			return err
		}
		assert.Equal(t, entry.ID, again.ID)
		return repo.SetLevel(ctx, tx, again, 20, 5)
	})
	require.NoError(t, err)

	entries, err := repo.ListByBranch(ctx, "NBO-01")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(20), entries[0].Quantity)
	assert.Equal(t, int64(5), entries[0].LowStockThreshold)
}

func TestStockRepository_LockEntryUsesRowLock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `stock_entries`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT \\* FROM `stock_entries` WHERE .* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "branch_id", "quantity", "low_stock_threshold"}).
			AddRow(7, "sku-1", "NBO-01", 12, 3))
	mock.ExpectCommit()

	repo := NewStockRepository(db)
	var entry *model.StockEntry
	err = db.Transaction(func(tx *gorm.DB) error {
		entry, err = repo.LockEntry(context.Background(), tx, "sku-1", "NBO-01")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint(7), entry.ID)
	assert.Equal(t, int64(12), entry.Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBranchRepository_CountActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewBranchRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx, "online"))
	require.NoError(t, repo.Seed(ctx, "online"))

	count, err := repo.CountActive(ctx, "NBO-01", "MSA-01", "KSM-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestDeadLetterRepository_Resolve(t *testing.T) {
	db := newTestDB(t)
	repo := NewDeadLetterRepository(db)
	ctx := context.Background()
	orderID := uint(9)

	require.NoError(t, repo.Create(ctx, &model.DeadLetter{
		Kind:    model.DeadLetterMaterialization,
		OrderID: &orderID,
		Error:   "boom",
	}))

	letters, err := repo.ListUnresolved(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.NotEmpty(t, letters[0].ID)

	require.NoError(t, repo.ResolveForOrder(ctx, model.DeadLetterMaterialization, orderID))
	letters, err = repo.ListUnresolved(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, letters)
}
