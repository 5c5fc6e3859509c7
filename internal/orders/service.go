package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avrportal/tindago-backend/internal/notifications"
	"github.com/avrportal/tindago-backend/internal/stock"
	"github.com/avrportal/tindago-backend/pkg/config"
	"github.com/avrportal/tindago-backend/pkg/db"
	"github.com/avrportal/tindago-backend/pkg/db/models"
	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/eventbus"
	"github.com/avrportal/tindago-backend/pkg/logger"
	"github.com/avrportal/tindago-backend/pkg/security"
)

const orderNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Viewer scopes read access to an order.
type Viewer struct {
	Role       enums.ActorRole
	SubjectID  uuid.UUID
	BusinessID *uuid.UUID
}

// Service defines the order workflow operations.
type Service interface {
	CreateOrder(ctx context.Context, buyerID uuid.UUID, input CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*models.Order, error)
	ListOrders(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	TransitionStatus(ctx context.Context, input TransitionInput) (*models.Order, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	bus      eventbus.Bus
	notifier notifications.Notifier
	cfg      config.OrderConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order service with its required dependencies.
func NewService(repo Repository, tx txRunner, bus eventbus.Bus, notifier notifications.Notifier, cfg config.OrderConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		bus:      bus,
		notifier: notifier,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// CreateOrder validates the payload, reserves stock and persists the order in
// one transaction. Order number collisions retry the whole transaction since
// the failed insert poisons it.
func (s *service) CreateOrder(ctx context.Context, buyerID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}

	totals, err := ValidateCreateOrder(input, s.now(), s.cfg.MinPickupLead(), s.cfg.MaxPickupLead())
	if err != nil {
		return nil, err
	}

	reservations := make([]stock.ReservationRequest, 0, len(input.Items))
	for _, item := range input.Items {
		reservations = append(reservations, stock.ReservationRequest{
			ProductID: item.ProductID,
			Qty:       item.Quantity,
		})
	}

	var created *models.Order
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		orderNumber, genErr := security.GenerateOrderNumber()
		if genErr != nil {
			return nil, genErr
		}

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := stock.Reserve(ctx, tx, reservations); err != nil {
				return err
			}

			order := buildOrder(buyerID, orderNumber, input, totals)
			persisted, err := s.repo.WithTx(tx).Create(ctx, order)
			if err != nil {
				return err
			}
			created = persisted
			return nil
		})
		if err == nil {
			break
		}
		if db.IsUniqueViolation(err, "idx_orders_order_number") {
			continue
		}
		return nil, err
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocate order number")
	}

	s.publish(ctx, eventbus.Event{
		Topic:         eventbus.TopicOrderUpdated,
		OrderID:       created.ID,
		OrderStatus:   created.Status,
		PaymentStatus: created.PaymentStatus,
	})
	s.notifier.Notify(ctx, notifications.Message{
		Kind:        notifications.KindOrderCreated,
		OrderID:     created.ID,
		BuyerID:     created.BuyerID,
		OrderStatus: created.Status,
	})

	return created, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID, viewer Viewer) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch viewer.Role {
	case enums.ActorRoleBuyer:
		if order.BuyerID != viewer.SubjectID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
	case enums.ActorRoleBusiness:
		if viewer.BusinessID == nil || order.BusinessID != *viewer.BusinessID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to business")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown viewer role")
	}

	return order, nil
}

func (s *service) ListOrders(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	return s.repo.ListByBuyer(ctx, buyerID)
}

// TransitionStatus drives the forward fulfillment flow for the business
// console. Cancellations and payment failures are handled elsewhere.
func (s *service) TransitionStatus(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.BusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "business context missing")
	}
	if !input.TargetStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}
	if !IsBusinessTransition(input.TargetStatus) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status is not a fulfillment transition")
	}

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BusinessID != input.BusinessID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to business")
	}

	expected := input.ExpectedStatus
	if expected == "" {
		expected = order.Status
	}
	if err := CheckTransition(expected, input.TargetStatus); err != nil {
		return nil, err
	}

	switch input.TargetStatus {
	case enums.OrderStatusReadyForPickup:
		err = s.markReadyForPickup(ctx, order.ID, expected)
	default:
		err = s.applyTransition(ctx, order.ID, expected, input.TargetStatus, nil)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, eventbus.Event{
		Topic:         eventbus.TopicOrderUpdated,
		OrderID:       updated.ID,
		OrderStatus:   updated.Status,
		PaymentStatus: updated.PaymentStatus,
	})
	s.notifier.Notify(ctx, notifications.Message{
		Kind:        notifications.KindOrderStatus,
		OrderID:     updated.ID,
		BuyerID:     updated.BuyerID,
		OrderStatus: updated.Status,
		ArrivalCode: updated.ArrivalCode,
	})

	return updated, nil
}

// markReadyForPickup assigns a fresh arrival code together with the status
// flip. Codes are unique among orders currently awaiting pickup, so a
// collision retries with a new code.
func (s *service) markReadyForPickup(ctx context.Context, orderID uuid.UUID, expected enums.OrderStatus) error {
	attempts := s.cfg.ArrivalCodeAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		code, err := security.GenerateArrivalCode(security.ArrivalCodeMaxDigits)
		if err != nil {
			return err
		}
		err = s.applyTransition(ctx, orderID, expected, enums.OrderStatusReadyForPickup,
			map[string]any{"arrival_code": code})
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "idx_orders_arrival_code_active") {
			return err
		}
		lastErr = err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "allocate arrival code")
}

func (s *service) applyTransition(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) error {
	moved, err := s.repo.UpdateStatusExpected(ctx, orderID, from, to, updates)
	if err != nil {
		return err
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
			WithDetails(map[string]any{"expected": from, "target": to})
	}
	return nil
}

func (s *service) publish(ctx context.Context, event eventbus.Event) {
	event.OccurredAt = s.now().UTC()
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, event.OrderID.String()), "publish order event failed")
	}
}

func buildOrder(buyerID uuid.UUID, orderNumber string, input CreateOrderInput, totals Totals) *models.Order {
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, models.OrderItem{
			ID:              uuid.New(),
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			TotalPrice:      item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
			SpecialRequests: item.SpecialRequests,
		})
	}
	return &models.Order{
		ID:                  uuid.New(),
		OrderNumber:         orderNumber,
		BusinessID:          input.BusinessID,
		BuyerID:             buyerID,
		Status:              enums.OrderStatusPending,
		PaymentMethod:       input.PaymentMethod,
		PaymentStatus:       enums.PaymentStatusPending,
		Subtotal:            totals.Subtotal,
		DiscountAmount:      totals.Discount,
		TaxAmount:           totals.Tax,
		TotalAmount:         totals.Total,
		PickupDatetime:      input.PickupDatetime,
		SpecialInstructions: input.SpecialInstructions,
		Items:               items,
	}
}
