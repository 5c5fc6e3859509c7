package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avrportal/tindago-backend/pkg/db/models"
	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL,
  business_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  subtotal NUMERIC NOT NULL,
  discount_amount NUMERIC NOT NULL,
  tax_amount NUMERIC NOT NULL,
  total_amount NUMERIC NOT NULL,
  pickup_datetime DATETIME NOT NULL,
  arrival_code TEXT,
  special_instructions TEXT,
  stock_restored INTEGER NOT NULL DEFAULT 0,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_order_number ON orders (order_number);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  total_price NUMERIC NOT NULL,
  special_requests TEXT,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS payment_intents (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'requires_action',
  amount NUMERIC NOT NULL,
  provider_reference TEXT NOT NULL,
  provider_payment_id TEXT,
  client_key TEXT NOT NULL,
  next_action_url TEXT,
  superseded INTEGER NOT NULL DEFAULT 0,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedIntent(t *testing.T, db *gorm.DB, mutate func(*models.PaymentIntent)) *models.PaymentIntent {
	t.Helper()

	intent := &models.PaymentIntent{
		ID:                uuid.New(),
		OrderID:           uuid.New(),
		Method:            enums.PaymentMethodGCash,
		Status:            enums.PaymentIntentStatusRequiresAction,
		Amount:            decimal.NewFromInt(250),
		ProviderReference: "pi_" + uuid.NewString()[:12],
		ClientKey:         "ck_" + uuid.NewString()[:12],
	}
	if mutate != nil {
		mutate(intent)
	}
	require.NoError(t, db.Create(intent).Error)
	return intent
}

func TestRepositoryFindActiveByOrderPicksLatestNonSuperseded(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	orderID := uuid.New()

	seedIntent(t, db, func(i *models.PaymentIntent) {
		i.OrderID = orderID
		i.Superseded = true
		i.CreatedAt = time.Now().Add(-time.Hour)
	})
	active := seedIntent(t, db, func(i *models.PaymentIntent) {
		i.OrderID = orderID
	})

	found, err := repo.FindActiveByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, found.ID)
}

func TestRepositoryFindActiveByOrderNotFound(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindActiveByOrder(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryFindByProviderReference(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	intent := seedIntent(t, db, nil)

	found, err := repo.FindByProviderReference(ctx, intent.ProviderReference)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, found.ID)

	_, err = repo.FindByProviderReference(ctx, "pi_missing")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryMarkSuperseded(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	intent := seedIntent(t, db, nil)
	require.NoError(t, repo.MarkSuperseded(ctx, intent.ID))

	var row models.PaymentIntent
	require.NoError(t, db.First(&row, "id = ?", intent.ID).Error)
	assert.True(t, row.Superseded)

	_, err := repo.FindActiveByOrder(ctx, intent.OrderID)
	require.Error(t, err)
}

func TestRepositoryUpdateStatusRecordsFailureReason(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	intent := seedIntent(t, db, nil)
	reason := "card declined"
	require.NoError(t, repo.UpdateStatus(ctx, intent.ID, enums.PaymentIntentStatusFailed, &reason, nil))

	var row models.PaymentIntent
	require.NoError(t, db.First(&row, "id = ?", intent.ID).Error)
	assert.Equal(t, enums.PaymentIntentStatusFailed, row.Status)
	require.NotNil(t, row.FailureReason)
	assert.Equal(t, reason, *row.FailureReason)
}

func TestRepositoryUpdateStatusUnknownIntent(t *testing.T) {
	db := setupPaymentsTestDB(t)
	repo := NewRepository(db)

	err := repo.UpdateStatus(context.Background(), uuid.New(), enums.PaymentIntentStatusSucceeded, nil, nil)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
