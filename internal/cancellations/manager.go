package cancellations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avrportal/tindago-backend/internal/notifications"
	"github.com/avrportal/tindago-backend/internal/orders"
	"github.com/avrportal/tindago-backend/internal/payments"
	"github.com/avrportal/tindago-backend/internal/refunds"
	"github.com/avrportal/tindago-backend/internal/stock"
	"github.com/avrportal/tindago-backend/pkg/config"
	"github.com/avrportal/tindago-backend/pkg/db/models"
	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/eventbus"
	"github.com/avrportal/tindago-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CancelInput identifies the order and who is cancelling it. BuyerID scopes
// user cancellations, BusinessID scopes business ones.
type CancelInput struct {
	OrderID    uuid.UUID
	Actor      enums.CancelActor
	BuyerID    uuid.UUID
	BusinessID uuid.UUID
}

// Manager handles grace-period cancellation: the status flip, stock
// restoration and refund enqueue happen in one transaction, the refund
// itself is dispatched later by the refund worker.
type Manager struct {
	ordersRepo orders.Repository
	intents    payments.Repository
	refunds    refunds.Repository
	tx         txRunner
	bus        eventbus.Bus
	notifier   notifications.Notifier
	cfg        config.OrderConfig
	logg       *logger.Logger
	now        func() time.Time
}

// NewManager builds the cancellation manager with its required dependencies.
func NewManager(ordersRepo orders.Repository, intents payments.Repository, refundRepo refunds.Repository, tx txRunner, bus eventbus.Bus, notifier notifications.Notifier, cfg config.OrderConfig, logg *logger.Logger) (*Manager, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if intents == nil {
		return nil, fmt.Errorf("payment intent repository required")
	}
	if refundRepo == nil {
		return nil, fmt.Errorf("refund repository required")
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
	return &Manager{
		ordersRepo: ordersRepo,
		intents:    intents,
		refunds:    refundRepo,
		tx:         tx,
		bus:        bus,
		notifier:   notifier,
		cfg:        cfg,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// Cancel closes the order out as cancelled. Permitted while the order is
// still pending, or inside the post-creation grace window on any status the
// state machine allows to cancel. A second cancel of an already cancelled
// order returns the order unchanged.
func (m *Manager) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Actor.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cancel actor")
	}

	ctx = m.logg.WithOrderID(ctx, input.OrderID.String())

	order, err := m.ordersRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := m.authorize(order, input); err != nil {
		return nil, err
	}

	if order.Status == enums.OrderStatusCancelledByUser || order.Status == enums.OrderStatusCancelledByBusiness {
		return order, nil
	}

	target := input.Actor.TerminalStatus()
	if err := m.checkWindow(order, target); err != nil {
		return nil, err
	}

	if err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return m.cancelTx(ctx, tx, order, target)
	}); err != nil {
		return nil, err
	}

	updated, err := m.ordersRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	event := eventbus.Event{
		Topic:         eventbus.TopicOrderUpdated,
		OrderID:       updated.ID,
		OrderStatus:   updated.Status,
		PaymentStatus: updated.PaymentStatus,
		OccurredAt:    m.now().UTC(),
	}
	if err := m.bus.Publish(ctx, event); err != nil {
		m.logg.Warn(ctx, "publish cancellation event failed")
	}
	m.notifier.Notify(ctx, notifications.Message{
		Kind:        notifications.KindOrderCancelled,
		OrderID:     updated.ID,
		BuyerID:     updated.BuyerID,
		OrderStatus: updated.Status,
	})

	return updated, nil
}

func (m *Manager) authorize(order *models.Order, input CancelInput) error {
	switch input.Actor {
	case enums.CancelActorUser:
		if order.BuyerID != input.BuyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
		}
	case enums.CancelActorBusiness:
		if order.BusinessID != input.BusinessID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to business")
		}
	}
	return nil
}

// checkWindow applies the grace-window rule on top of the state machine. The
// grace window widens the status set that may cancel, it never opens edges
// the state machine forbids, so an order already awaiting pickup stays
// uncancellable.
func (m *Manager) checkWindow(order *models.Order, target enums.OrderStatus) error {
	inGrace := m.now().Sub(order.CreatedAt) < m.cfg.CancelGracePeriod()
	if order.Status != enums.OrderStatusPending && !inGrace {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			"cancellation window has closed, contact the business to cancel").
			WithDetails(map[string]any{"status": order.Status})
	}
	return orders.CheckTransition(order.Status, target)
}

func (m *Manager) cancelTx(ctx context.Context, tx *gorm.DB, order *models.Order, target enums.OrderStatus) error {
	repo := m.ordersRepo.WithTx(tx)

	moved, err := repo.UpdateStatusExpected(ctx, order.ID, order.Status, target, map[string]any{
		"cancelled_at": m.now().UTC(),
	})
	if err != nil {
		return err
	}
	if !moved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
			WithDetails(map[string]any{"expected": order.Status, "target": target})
	}

	if !order.StockRestored {
		restorations := make([]stock.ReservationRequest, 0, len(order.Items))
		for _, item := range order.Items {
			restorations = append(restorations, stock.ReservationRequest{
				ProductID: item.ProductID,
				Qty:       item.Quantity,
			})
		}
		if err := stock.Restore(ctx, tx, restorations); err != nil {
			return err
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"stock_restored": true}); err != nil {
			return err
		}
	}

	if order.PaymentStatus == enums.PaymentStatusPaid {
		intent, err := m.intents.WithTx(tx).FindActiveByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locate intent for refund")
		}
		if _, err := m.refunds.WithTx(tx).Enqueue(ctx, order.ID, intent.ID, order.TotalAmount); err != nil {
			return err
		}
		m.logg.Info(ctx, "refund queued for cancelled order")
	}

	return nil
}
