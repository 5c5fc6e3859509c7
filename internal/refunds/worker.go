package refunds

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/avrportal/tindago-backend/internal/notifications"
	"github.com/avrportal/tindago-backend/pkg/config"
	"github.com/avrportal/tindago-backend/pkg/db/models"
	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/eventbus"
	"github.com/avrportal/tindago-backend/pkg/logger"
	"github.com/avrportal/tindago-backend/pkg/paymongo"
)

const (
	refundReason       = "requested_by_customer"
	dispatchBackoff    = 500 * time.Millisecond
	dispatchBackoffCap = 5 * time.Second
	dispatchRetries    = 2
)

// Gateway is the PayMongo capability the worker depends on.
type Gateway interface {
	CreateRefund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (*paymongo.Refund, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*paymongo.PaymentIntent, error)
}

type intentSource interface {
	FindByID(ctx context.Context, intentID uuid.UUID) (*models.PaymentIntent, error)
}

type orderUpdater interface {
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}

// Worker drains the refund queue against the payment gateway. Dispatch is
// fire-and-forget from the cancellation's point of view; this loop carries
// the retries.
type Worker struct {
	repo     Repository
	intents  intentSource
	orders   orderUpdater
	gateway  Gateway
	bus      eventbus.Bus
	notifier notifications.Notifier
	cfg      config.RefundsConfig
	logg     *logger.Logger
}

// NewWorker builds the refund dispatch worker.
func NewWorker(repo Repository, intents intentSource, orders orderUpdater, gateway Gateway, bus eventbus.Bus, notifier notifications.Notifier, cfg config.RefundsConfig, logg *logger.Logger) (*Worker, error) {
	if repo == nil {
		return nil, fmt.Errorf("refund repository required")
	}
	if intents == nil {
		return nil, fmt.Errorf("intent source required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order updater required")
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
	return &Worker{
		repo:     repo,
		intents:  intents,
		orders:   orders,
		gateway:  gateway,
		bus:      bus,
		notifier: notifier,
		cfg:      cfg,
		logg:     logg,
	}, nil
}

// Run polls the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	interval := w.cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logg.Info(ctx, "refund worker started")
	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "refund worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil {
				w.logg.Error(ctx, "refund batch failed", err)
			}
		}
	}
}

// ProcessBatch dispatches one batch of queued refunds and returns how many
// succeeded. Per-row failures are recorded on the row, not returned.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	batch := w.cfg.BatchSize
	if batch <= 0 {
		batch = 20
	}
	maxAttempts := w.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	queued, err := w.repo.FetchQueued(ctx, batch, maxAttempts)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, request := range queued {
		reqCtx := w.logg.WithOrderID(ctx, request.OrderID.String())
		if err := w.dispatch(reqCtx, request); err != nil {
			w.logg.Error(reqCtx, "refund dispatch failed", err)
			if recordErr := w.repo.RecordFailure(ctx, request.ID, err, maxAttempts); recordErr != nil {
				return dispatched, multierr.Append(err, recordErr)
			}
			continue
		}
		dispatched++
	}
	return dispatched, nil
}

func (w *Worker) dispatch(ctx context.Context, request models.RefundRequest) error {
	intent, err := w.intents.FindByID(ctx, request.PaymentIntentID)
	if err != nil {
		return err
	}

	paymentID, err := w.resolvePaymentID(ctx, intent)
	if err != nil {
		return err
	}

	backoff := retry.WithCappedDuration(dispatchBackoffCap,
		retry.WithMaxRetries(dispatchRetries, retry.NewExponential(dispatchBackoff)))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := w.gateway.CreateRefund(ctx, paymentID, request.Amount, refundReason)
		if err == nil {
			return nil
		}
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeDependency {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return err
	}

	if err := w.repo.MarkDispatched(ctx, request.ID); err != nil {
		return err
	}
	if err := w.orders.Update(ctx, request.OrderID, map[string]any{
		"payment_status": enums.PaymentStatusRefunded,
	}); err != nil {
		return err
	}

	w.announce(ctx, request.OrderID)
	return nil
}

// resolvePaymentID prefers the payment id recorded at reconciliation time
// and falls back to asking the gateway for the intent's captured payment.
func (w *Worker) resolvePaymentID(ctx context.Context, intent *models.PaymentIntent) (string, error) {
	if intent.ProviderPaymentID != nil && *intent.ProviderPaymentID != "" {
		return *intent.ProviderPaymentID, nil
	}
	remote, err := w.gateway.GetPaymentIntent(ctx, intent.ProviderReference)
	if err != nil {
		return "", err
	}
	if remote.PaymentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "intent has no captured payment to refund")
	}
	return remote.PaymentID, nil
}

func (w *Worker) announce(ctx context.Context, orderID uuid.UUID) {
	order, err := w.orders.FindByID(ctx, orderID)
	if err != nil {
		w.logg.Error(ctx, "load order after refund", err)
		return
	}

	event := eventbus.Event{
		Topic:         eventbus.TopicPaymentUpdated,
		OrderID:       order.ID,
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
		OccurredAt:    time.Now().UTC(),
	}
	if err := w.bus.Publish(ctx, event); err != nil {
		w.logg.Warn(ctx, "publish refund event failed")
	}
	w.notifier.Notify(ctx, notifications.Message{
		Kind:          notifications.KindRefundDispatch,
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
	})
}
