package paymongo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/avrportal/tindago-backend/internal/payments"
	"github.com/avrportal/tindago-backend/pkg/db"
	"github.com/avrportal/tindago-backend/pkg/db/models"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/logger"
	"github.com/avrportal/tindago-backend/pkg/metrics"
	gateway "github.com/avrportal/tindago-backend/pkg/paymongo"
	"github.com/avrportal/tindago-backend/pkg/redis"
)

const idempotencyScope = "webhook:paymongo"

// outcomeApplier is the slice of the payment coordinator the webhook needs.
type outcomeApplier interface {
	ApplyGatewayOutcome(ctx context.Context, outcome payments.GatewayOutcome) error
}

// Service turns verified PayMongo webhook deliveries into payment outcomes.
// Duplicate deliveries are dropped by a Redis guard backed by a durable
// webhook_events row.
type Service struct {
	applier outcomeApplier
	store   redis.IdempotencyStore
	db      *gorm.DB
	m       *metrics.PaymentMetrics
	secret  string
	ttl     time.Duration
	logg    *logger.Logger
}

// NewService builds the webhook processor.
func NewService(applier outcomeApplier, store redis.IdempotencyStore, gormDB *gorm.DB, m *metrics.PaymentMetrics, webhookSecret string, idempotencyTTL time.Duration, logg *logger.Logger) (*Service, error) {
	if applier == nil {
		return nil, fmt.Errorf("payment outcome applier required")
	}
	if store == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if gormDB == nil {
		return nil, fmt.Errorf("database handle required")
	}
	if webhookSecret == "" {
		return nil, fmt.Errorf("webhook secret required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if idempotencyTTL <= 0 {
		idempotencyTTL = 72 * time.Hour
	}
	return &Service{
		applier: applier,
		store:   store,
		db:      gormDB,
		m:       m,
		secret:  webhookSecret,
		ttl:     idempotencyTTL,
		logg:    logg,
	}, nil
}

// Handle verifies, deduplicates and applies one raw webhook delivery. A
// signature failure is rejected before any state is touched. Duplicates and
// event types the platform does not consume succeed as no-ops so the
// gateway stops redelivering them.
func (s *Service) Handle(ctx context.Context, payload []byte, signatureHeader string) error {
	if err := gateway.VerifyWebhookSignature(payload, signatureHeader, s.secret); err != nil {
		s.m.IncWebhookRejected("signature")
		s.logg.Warn(ctx, "webhook signature rejected")
		return err
	}

	event, err := gateway.ParseWebhookEvent(payload)
	if err != nil {
		s.m.IncWebhookRejected("malformed")
		return err
	}

	if event.Type != gateway.EventPaymentPaid && event.Type != gateway.EventPaymentFailed {
		s.logg.Info(ctx, "ignoring webhook event type "+event.Type)
		return nil
	}
	if event.IntentID == "" {
		s.m.IncWebhookRejected("missing_intent")
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing payment intent reference")
	}

	key := s.store.IdempotencyKey(idempotencyScope, event.ID)
	fresh, err := s.store.SetNX(ctx, key, 1, s.ttl)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook idempotency guard")
	}
	if !fresh {
		s.logg.Info(ctx, "duplicate webhook delivery dropped")
		return nil
	}

	audit := &models.WebhookEvent{EventID: event.ID, EventType: event.Type}
	if err := s.db.WithContext(ctx).Create(audit).Error; err != nil {
		if db.IsUniqueViolation(err, "webhook_events_pkey") {
			s.logg.Info(ctx, "webhook already processed")
			return nil
		}
		s.release(ctx, key)
		return err
	}

	outcome := payments.GatewayOutcome{
		ProviderReference: event.IntentID,
		PaymentID:         event.PaymentID,
		Paid:              event.Type == gateway.EventPaymentPaid,
	}
	if !outcome.Paid && event.FailureDetail != "" {
		detail := event.FailureDetail
		outcome.FailureDetail = &detail
	}

	if err := s.applier.ApplyGatewayOutcome(ctx, outcome); err != nil {
		// Undo the dedupe markers so the gateway's retry gets another shot.
		s.release(ctx, key)
		if delErr := s.db.WithContext(ctx).Delete(&models.WebhookEvent{}, "event_id = ?", event.ID).Error; delErr != nil {
			s.logg.Error(ctx, "drop webhook audit row failed", delErr)
		}
		return err
	}

	s.m.IncWebhookReceived(event.Type)
	return nil
}

func (s *Service) release(ctx context.Context, key string) {
	if err := s.store.Del(ctx, key); err != nil {
		s.logg.Error(ctx, "release webhook idempotency key failed", err)
	}
}
