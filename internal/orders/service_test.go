package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avrportal/tindago-backend/internal/notifications"
	"github.com/avrportal/tindago-backend/pkg/config"
	"github.com/avrportal/tindago-backend/pkg/db/models"
	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/eventbus"
	"github.com/avrportal/tindago-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notifications.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notifications.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) last(t *testing.T) notifications.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.msgs)
	return n.msgs[len(n.msgs)-1]
}

func newTestService(t *testing.T, db *gorm.DB) (Service, *recordingNotifier) {
	t.Helper()

	notifier := &recordingNotifier{}
	logg := logger.New(logger.Options{ServiceName: "test"})
	cfg := config.OrderConfig{
		MinPickupMinutes:    30,
		MaxPickupHours:      72,
		ArrivalCodeAttempts: 5,
	}
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, eventbus.NewMemoryBus(), notifier, cfg, logg)
	require.NoError(t, err)
	return svc, notifier
}

func seedProduct(t *testing.T, db *gorm.DB, qty int) uuid.UUID {
	t.Helper()
	productID := uuid.New()
	require.NoError(t, db.Create(&models.ProductStock{
		ProductID:    productID,
		BusinessID:   uuid.New(),
		CurrentStock: qty,
		Status:       enums.StockStatusActive,
	}).Error)
	return productID
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	db := setupOrdersTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "test"})

	_, err := NewService(nil, gormTxRunner{db: db}, eventbus.NewMemoryBus(), &recordingNotifier{}, config.OrderConfig{}, logg)
	assert.Error(t, err)

	_, err = NewService(NewRepository(db), nil, eventbus.NewMemoryBus(), &recordingNotifier{}, config.OrderConfig{}, logg)
	assert.Error(t, err)

	_, err = NewService(NewRepository(db), gormTxRunner{db: db}, nil, &recordingNotifier{}, config.OrderConfig{}, logg)
	assert.Error(t, err)
}

func TestCreateOrderReservesStockAndPersists(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, notifier := newTestService(t, db)
	ctx := context.Background()

	buyerID := uuid.New()
	productID := seedProduct(t, db, 5)

	order, err := svc.CreateOrder(ctx, buyerID, CreateOrderInput{
		BusinessID:     uuid.New(),
		PickupDatetime: time.Now().Add(2 * time.Hour),
		PaymentMethod:  enums.PaymentMethodGCash,
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.Zero,
		Items: []OrderItemInput{
			{ProductID: productID, Quantity: 3, UnitPrice: decimal.NewFromFloat(49.50)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromFloat(148.50)), "total %s", order.TotalAmount)
	assert.Contains(t, order.OrderNumber, "TD-")

	var row models.ProductStock
	require.NoError(t, db.First(&row, "product_id = ?", productID).Error)
	assert.Equal(t, 2, row.CurrentStock)

	msg := notifier.last(t)
	assert.Equal(t, notifications.KindOrderCreated, msg.Kind)
	assert.Equal(t, order.ID, msg.OrderID)
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	productID := seedProduct(t, db, 1)

	_, err := svc.CreateOrder(ctx, uuid.New(), CreateOrderInput{
		BusinessID:     uuid.New(),
		PickupDatetime: time.Now().Add(2 * time.Hour),
		PaymentMethod:  enums.PaymentMethodCard,
		Items: []OrderItemInput{
			{ProductID: productID, Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
		},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)

	var row models.ProductStock
	require.NoError(t, db.First(&row, "product_id = ?", productID).Error)
	assert.Equal(t, 1, row.CurrentStock)
}

func TestCreateOrderRejectsEarlyPickup(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newTestService(t, db)

	_, err := svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{
		BusinessID:     uuid.New(),
		PickupDatetime: time.Now().Add(10 * time.Minute),
		PaymentMethod:  enums.PaymentMethodCashOnPickup,
		Items: []OrderItemInput{
			{ProductID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
		},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestGetOrderScopesByViewer(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	order := seedOrder(t, db, nil)

	found, err := svc.GetOrder(ctx, order.ID, Viewer{
		Role:      enums.ActorRoleBuyer,
		SubjectID: order.BuyerID,
	})
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = svc.GetOrder(ctx, order.ID, Viewer{
		Role:      enums.ActorRoleBuyer,
		SubjectID: uuid.New(),
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	businessID := order.BusinessID
	_, err = svc.GetOrder(ctx, order.ID, Viewer{
		Role:       enums.ActorRoleBusiness,
		SubjectID:  uuid.New(),
		BusinessID: &businessID,
	})
	assert.NoError(t, err)

	otherBusiness := uuid.New()
	_, err = svc.GetOrder(ctx, order.ID, Viewer{
		Role:       enums.ActorRoleBusiness,
		SubjectID:  uuid.New(),
		BusinessID: &otherBusiness,
	})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestTransitionStatusAdvancesOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, notifier := newTestService(t, db)
	ctx := context.Background()

	order := seedOrder(t, db, nil)

	updated, err := svc.TransitionStatus(ctx, TransitionInput{
		OrderID:      order.ID,
		BusinessID:   order.BusinessID,
		TargetStatus: enums.OrderStatusAccepted,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAccepted, updated.Status)

	msg := notifier.last(t)
	assert.Equal(t, notifications.KindOrderStatus, msg.Kind)
	assert.Equal(t, enums.OrderStatusAccepted, msg.OrderStatus)
}

func TestTransitionStatusRejectsIllegalEdge(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newTestService(t, db)

	order := seedOrder(t, db, nil)

	_, err := svc.TransitionStatus(context.Background(), TransitionInput{
		OrderID:      order.ID,
		BusinessID:   order.BusinessID,
		TargetStatus: enums.OrderStatusPickedUp,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestTransitionStatusRejectsForeignBusiness(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newTestService(t, db)

	order := seedOrder(t, db, nil)

	_, err := svc.TransitionStatus(context.Background(), TransitionInput{
		OrderID:      order.ID,
		BusinessID:   uuid.New(),
		TargetStatus: enums.OrderStatusAccepted,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestTransitionStatusRejectsCancellationTarget(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newTestService(t, db)

	order := seedOrder(t, db, nil)

	_, err := svc.TransitionStatus(context.Background(), TransitionInput{
		OrderID:      order.ID,
		BusinessID:   order.BusinessID,
		TargetStatus: enums.OrderStatusCancelledByBusiness,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestTransitionStatusStaleExpectedStatusConflicts(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, _ := newTestService(t, db)
	ctx := context.Background()

	order := seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusAccepted
	})

	_, err := svc.TransitionStatus(ctx, TransitionInput{
		OrderID:        order.ID,
		BusinessID:     order.BusinessID,
		ExpectedStatus: enums.OrderStatusPending,
		TargetStatus:   enums.OrderStatusAccepted,
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestTransitionToReadyForPickupAssignsArrivalCode(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, notifier := newTestService(t, db)
	ctx := context.Background()

	order := seedOrder(t, db, func(o *models.Order) {
		o.Status = enums.OrderStatusPreparing
	})

	updated, err := svc.TransitionStatus(ctx, TransitionInput{
		OrderID:      order.ID,
		BusinessID:   order.BusinessID,
		TargetStatus: enums.OrderStatusReadyForPickup,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.ArrivalCode)
	assert.Len(t, *updated.ArrivalCode, 6)

	msg := notifier.last(t)
	require.NotNil(t, msg.ArrivalCode)
	assert.Equal(t, *updated.ArrivalCode, *msg.ArrivalCode)
}
