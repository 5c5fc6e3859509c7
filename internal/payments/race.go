package payments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avrportal/tindago-backend/pkg/db/models"
	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/eventbus"
)

// Outcome is the result of a reconciliation wait. Timeout is a valid
// outcome, not an error; the order may still resolve later.
type Outcome string

const (
	OutcomePaid      Outcome = "paid"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeCancelled Outcome = "cancelled"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 30
)

// Reconcile waits for an authoritative payment result: the first of a
// realtime payment event, a poll observing the settled order, or the attempt
// budget running out. Timing out mutates nothing.
func (s *service) Reconcile(ctx context.Context, orderID, buyerID uuid.UUID) (Outcome, error) {
	if orderID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if buyerID != uuid.Nil && order.BuyerID != buyerID {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	if !order.PaymentMethod.RequiresGateway() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order has no gateway payment to reconcile")
	}

	started := s.now()
	outcome, err := s.race(ctx, order)
	if err != nil {
		return "", err
	}
	if s.metrics != nil {
		s.metrics.ObserveReconcile(order.PaymentMethod.String(), string(outcome), s.now().Sub(started))
	}
	return outcome, nil
}

func (s *service) race(ctx context.Context, order *models.Order) (Outcome, error) {
	if outcome, done := resolveOrder(order); done {
		return outcome, nil
	}

	events, stop, err := s.bus.Subscribe(ctx, order.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "subscribe order events")
	}
	defer stop()

	// The subscription may have raced a webhook that landed between the
	// first read and the subscribe.
	if outcome, done, err := s.pollOnce(ctx, order.ID); err != nil {
		return "", err
	} else if done {
		return outcome, nil
	}

	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := s.cfg.PollAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 0; attempt < attempts; {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case event, ok := <-events:
			if !ok {
				return OutcomeTimeout, nil
			}
			if outcome, done := resolveEvent(event); done {
				return outcome, nil
			}
		case <-ticker.C:
			attempt++
			outcome, done, err := s.pollOnce(ctx, order.ID)
			if err != nil {
				return "", err
			}
			if done {
				return outcome, nil
			}
		}
	}
	return OutcomeTimeout, nil
}

// pollOnce re-reads the order and, while it is still unsettled, probes the
// gateway for a terminal intent the webhook may have failed to deliver.
func (s *service) pollOnce(ctx context.Context, orderID uuid.UUID) (Outcome, bool, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return "", false, err
	}
	if outcome, done := resolveOrder(order); done {
		return outcome, true, nil
	}
	return s.probeGateway(ctx, orderID)
}

func (s *service) probeGateway(ctx context.Context, orderID uuid.UUID) (Outcome, bool, error) {
	intent, err := s.intents.FindActiveByOrder(ctx, orderID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return "", false, nil
		}
		return "", false, err
	}

	remote, err := s.gateway.GetPaymentIntent(ctx, intent.ProviderReference)
	if err != nil {
		// Gateway hiccups leave the race running; the next tick retries.
		s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "gateway probe failed")
		return "", false, nil
	}

	outcome, terminal := gatewayOutcome(remote.Status, remote.LastError)
	if !terminal {
		return "", false, nil
	}

	applied := GatewayOutcome{
		ProviderReference: intent.ProviderReference,
		PaymentID:         remote.PaymentID,
		Paid:              outcome == OutcomePaid,
	}
	if remote.LastError != "" {
		detail := remote.LastError
		applied.FailureDetail = &detail
	}
	if err := s.ApplyGatewayOutcome(ctx, applied); err != nil {
		return "", false, err
	}
	return outcome, true, nil
}

func resolveOrder(order *models.Order) (Outcome, bool) {
	switch order.Status {
	case enums.OrderStatusCancelledByUser, enums.OrderStatusCancelledByBusiness:
		return OutcomeCancelled, true
	}
	switch order.PaymentStatus {
	case enums.PaymentStatusPaid, enums.PaymentStatusRefunded:
		return OutcomePaid, true
	case enums.PaymentStatusFailed:
		return OutcomeFailed, true
	}
	return "", false
}

func resolveEvent(event eventbus.Event) (Outcome, bool) {
	switch event.OrderStatus {
	case enums.OrderStatusCancelledByUser, enums.OrderStatusCancelledByBusiness:
		return OutcomeCancelled, true
	}
	switch event.PaymentStatus {
	case enums.PaymentStatusPaid, enums.PaymentStatusRefunded:
		return OutcomePaid, true
	case enums.PaymentStatusFailed:
		return OutcomeFailed, true
	}
	return "", false
}

// gatewayOutcome maps a raw gateway intent status to a race outcome. A
// failed attempt surfaces as awaiting_payment_method plus a last error.
func gatewayOutcome(status, lastError string) (Outcome, bool) {
	switch status {
	case "succeeded":
		return OutcomePaid, true
	case "awaiting_payment_method":
		if lastError != "" {
			return OutcomeFailed, true
		}
		return "", false
	default:
		return "", false
	}
}
