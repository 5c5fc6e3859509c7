package orders

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

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
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
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_arrival_code_active ON orders (arrival_code)
  WHERE arrival_code IS NOT NULL AND status = 'ready_for_pickup';`, `
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
CREATE TABLE IF NOT EXISTS product_stocks (
  product_id TEXT PRIMARY KEY,
  business_id TEXT NOT NULL,
  current_stock INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',
  updated_at DATETIME
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, mutate func(*models.Order)) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:             uuid.New(),
		OrderNumber:    "TD-" + uuid.NewString()[:8],
		BusinessID:     uuid.New(),
		BuyerID:        uuid.New(),
		Status:         enums.OrderStatusPending,
		PaymentMethod:  enums.PaymentMethodCashOnPickup,
		PaymentStatus:  enums.PaymentStatusPending,
		Subtotal:       decimal.NewFromInt(100),
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.Zero,
		TotalAmount:    decimal.NewFromInt(100),
		PickupDatetime: time.Now().Add(2 * time.Hour),
		Items: []models.OrderItem{{
			ID:         uuid.New(),
			ProductID:  uuid.New(),
			Quantity:   2,
			UnitPrice:  decimal.NewFromInt(50),
			TotalPrice: decimal.NewFromInt(100),
		}},
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryCreateAndFindByID(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedOrder(t, db, nil)

	found, err := repo.FindByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.OrderNumber, found.OrderNumber)
	require.Len(t, found.Items, 1)
	assert.Equal(t, 2, found.Items[0].Quantity)
}

func TestRepositoryFindByOrderNumber(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedOrder(t, db, nil)

	found, err := repo.FindByOrderNumber(ctx, seeded.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)
	require.Len(t, found.Items, 1)

	_, err = repo.FindByOrderNumber(ctx, "TD-20990101-ffff")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryFindByIDNotFound(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByID(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestRepositoryListByBuyerNewestFirst(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	buyerID := uuid.New()

	older := seedOrder(t, db, func(o *models.Order) {
		o.BuyerID = buyerID
		o.CreatedAt = time.Now().Add(-time.Hour)
	})
	newer := seedOrder(t, db, func(o *models.Order) {
		o.BuyerID = buyerID
	})
	seedOrder(t, db, nil)

	list, err := repo.ListByBuyer(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestRepositoryUpdateStatusExpected(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, nil)

	moved, err := repo.UpdateStatusExpected(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusAccepted, nil)
	require.NoError(t, err)
	assert.True(t, moved)

	// The row no longer holds pending, so a stale writer loses.
	moved, err = repo.UpdateStatusExpected(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusAccepted, nil)
	require.NoError(t, err)
	assert.False(t, moved)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAccepted, found.Status)
}

func TestRepositoryUpdateStatusExpectedCarriesExtraColumns(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusPreparing
	})

	moved, err := repo.UpdateStatusExpected(ctx, order.ID,
		enums.OrderStatusPreparing, enums.OrderStatusReadyForPickup,
		map[string]any{"arrival_code": "482913"})
	require.NoError(t, err)
	require.True(t, moved)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found.ArrivalCode)
	assert.Equal(t, "482913", *found.ArrivalCode)
}

func TestRepositoryArrivalCodeUniqueAmongReadyOrders(t *testing.T) {
	db := setupOrdersTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	code := "776655"
	seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusReadyForPickup
		o.ArrivalCode = &code
	})
	second := seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusPreparing
	})

	_, err := repo.UpdateStatusExpected(ctx, second.ID,
		enums.OrderStatusPreparing, enums.OrderStatusReadyForPickup,
		map[string]any{"arrival_code": code})
	require.Error(t, err)

	// Picked-up orders release their code for reuse.
	picked := seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusPickedUp
		o.ArrivalCode = &code
	})
	assert.NotNil(t, picked)
}

func TestRepositoryUpdateUnknownOrderIsNotFound(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	err := repo.Update(context.Background(), uuid.New(), map[string]any{"stock_restored": true})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
