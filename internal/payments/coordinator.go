package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avrportal/tindago-backend/internal/notifications"
	"github.com/avrportal/tindago-backend/internal/orders"
	"github.com/avrportal/tindago-backend/pkg/config"
	"github.com/avrportal/tindago-backend/pkg/db/models"
	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/eventbus"
	"github.com/avrportal/tindago-backend/pkg/logger"
	"github.com/avrportal/tindago-backend/pkg/metrics"
	"github.com/avrportal/tindago-backend/pkg/paymongo"
)

const intentCurrency = "PHP"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Gateway is the PayMongo capability the coordinator depends on.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, params paymongo.CreateIntentParams) (*paymongo.PaymentIntent, error)
	AttachEwallet(ctx context.Context, params paymongo.AttachParams) (*paymongo.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*paymongo.PaymentIntent, error)
	ReturnURL() string
}

// StartResult describes what the client must do next to complete payment.
type StartResult struct {
	// CashOnPickup is set when no gateway flow applies; the order settles
	// at the counter.
	CashOnPickup bool
	Intent       *models.PaymentIntent
	// ClientKey lets the client collect card details against the intent.
	ClientKey string
	// CheckoutURL is the e-wallet authentication redirect.
	CheckoutURL *string
}

// GatewayOutcome is an authoritative payment result reported by the gateway,
// via webhook or any other channel.
type GatewayOutcome struct {
	ProviderReference string
	// PaymentID is the captured payment resource id recorded for later
	// refunds. Empty on failures.
	PaymentID     string
	Paid          bool
	FailureDetail *string
}

// Service coordinates the payment intent lifecycle for orders.
type Service interface {
	StartPayment(ctx context.Context, orderID, buyerID uuid.UUID) (*StartResult, error)
	Reconcile(ctx context.Context, orderID, buyerID uuid.UUID) (Outcome, error)
	ApplyGatewayOutcome(ctx context.Context, outcome GatewayOutcome) error
	ActiveIntent(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error)
}

type service struct {
	intents  Repository
	orders   orders.Repository
	tx       txRunner
	gateway  Gateway
	bus      eventbus.Bus
	notifier notifications.Notifier
	metrics  *metrics.PaymentMetrics
	cfg      config.ReconcileConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the payment coordinator with its required dependencies.
// Metrics may be nil.
func NewService(intents Repository, ordersRepo orders.Repository, tx txRunner, gateway Gateway, bus eventbus.Bus, notifier notifications.Notifier, m *metrics.PaymentMetrics, cfg config.ReconcileConfig, logg *logger.Logger) (Service, error) {
	if intents == nil {
		return nil, fmt.Errorf("payment intent repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
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
		intents:  intents,
		orders:   ordersRepo,
		tx:       tx,
		gateway:  gateway,
		bus:      bus,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// StartPayment opens a gateway intent for the order, or restarts the flow on
// retry. The previous intent is superseded, never mutated, so the attempt
// history stays intact.
func (s *service) StartPayment(ctx context.Context, orderID, buyerID uuid.UUID) (*StartResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if buyerID != uuid.Nil && order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is closed").
			WithDetails(map[string]any{"status": order.Status})
	}
	if order.PaymentStatus == enums.PaymentStatusPaid || order.PaymentStatus == enums.PaymentStatusRefunded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already settled").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}

	if !order.PaymentMethod.RequiresGateway() {
		return &StartResult{CashOnPickup: true}, nil
	}

	gatewayIntent, err := s.gateway.CreatePaymentIntent(ctx, paymongo.CreateIntentParams{
		Amount:      order.TotalAmount,
		Currency:    intentCurrency,
		Methods:     []string{order.PaymentMethod.String()},
		Description: order.OrderNumber,
	})
	if err != nil {
		return nil, err
	}

	var nextAction *string
	if order.PaymentMethod.IsEwallet() {
		attached, err := s.gateway.AttachEwallet(ctx, paymongo.AttachParams{
			IntentID:   gatewayIntent.ID,
			ClientKey:  gatewayIntent.ClientKey,
			MethodType: order.PaymentMethod.String(),
			ReturnURL:  s.gateway.ReturnURL(),
		})
		if err != nil {
			return nil, err
		}
		if attached.NextActionURL != "" {
			nextAction = &attached.NextActionURL
		}
	}

	intent := &models.PaymentIntent{
		ID:                uuid.New(),
		OrderID:           order.ID,
		Method:            order.PaymentMethod,
		Status:            enums.PaymentIntentStatusRequiresAction,
		Amount:            order.TotalAmount,
		ProviderReference: gatewayIntent.ID,
		ClientKey:         gatewayIntent.ClientKey,
		NextActionURL:     nextAction,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.intents.WithTx(tx)
		prior, err := repo.FindActiveByOrder(ctx, order.ID)
		if err == nil {
			if err := repo.MarkSuperseded(ctx, prior.ID); err != nil {
				return err
			}
		} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			return err
		}
		_, err = repo.Create(ctx, intent)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &StartResult{
		Intent:      intent,
		ClientKey:   intent.ClientKey,
		CheckoutURL: intent.NextActionURL,
	}, nil
}

// ApplyGatewayOutcome records an authoritative gateway result. Duplicate
// deliveries are no-ops; the payment event is only published when local
// state actually changed.
func (s *service) ApplyGatewayOutcome(ctx context.Context, outcome GatewayOutcome) error {
	if outcome.ProviderReference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider reference required")
	}

	var (
		order   *models.Order
		applied bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		intents := s.intents.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		intent, err := intents.FindByProviderReference(ctx, outcome.ProviderReference)
		if err != nil {
			return err
		}
		if intent.Status.IsTerminal() {
			return nil
		}

		target := enums.PaymentIntentStatusFailed
		paymentStatus := enums.PaymentStatusFailed
		if outcome.Paid {
			target = enums.PaymentIntentStatusSucceeded
			paymentStatus = enums.PaymentStatusPaid
		}
		var paymentID *string
		if outcome.PaymentID != "" {
			paymentID = &outcome.PaymentID
		}
		if err := intents.UpdateStatus(ctx, intent.ID, target, outcome.FailureDetail, paymentID); err != nil {
			return err
		}

		order, err = ordersRepo.FindByID(ctx, intent.OrderID)
		if err != nil {
			return err
		}
		if err := ordersRepo.Update(ctx, order.ID, map[string]any{"payment_status": paymentStatus}); err != nil {
			return err
		}
		order.PaymentStatus = paymentStatus

		// A definitive failure closes the order, but only from statuses
		// that still allow the failed_payment branch.
		if !outcome.Paid && orders.CanTransition(order.Status, enums.OrderStatusFailedPayment) {
			moved, err := ordersRepo.UpdateStatusExpected(ctx, order.ID, order.Status, enums.OrderStatusFailedPayment, nil)
			if err != nil {
				return err
			}
			if moved {
				order.Status = enums.OrderStatusFailedPayment
			}
		}

		applied = true
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	event := eventbus.Event{
		Topic:         eventbus.TopicPaymentUpdated,
		OrderID:       order.ID,
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "publish payment event failed")
	}
	s.notifier.Notify(ctx, notifications.Message{
		Kind:          notifications.KindPaymentOutcome,
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
	})
	return nil
}

// ActiveIntent returns the order's current non-superseded intent.
func (s *service) ActiveIntent(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error) {
	return s.intents.FindActiveByOrder(ctx, orderID)
}
