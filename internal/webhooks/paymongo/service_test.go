package paymongo

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avrportal/tindago-backend/internal/payments"
	"github.com/avrportal/tindago-backend/pkg/db/models"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/logger"
)

const testWebhookSecret = "whsk_test_secret"

type stubApplier struct {
	mu       sync.Mutex
	applied  []payments.GatewayOutcome
	applyErr error
}

func (a *stubApplier) ApplyGatewayOutcome(_ context.Context, outcome payments.GatewayOutcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.applyErr != nil {
		return a.applyErr
	}
	a.applied = append(a.applied, outcome)
	return nil
}

func (a *stubApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.applied)
}

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]bool{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return "1", nil
	}
	return "", nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "tindago:idempotency:" + scope + ":" + id
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func setupWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:webhooks_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS webhook_events (
  event_id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  processed_at DATETIME
);`).Error)
	return db
}

type webhookFixture struct {
	db      *gorm.DB
	service *Service
	applier *stubApplier
	store   *memoryStore
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	db := setupWebhookTestDB(t)
	applier := &stubApplier{}
	store := newMemoryStore()
	logg := logger.New(logger.Options{ServiceName: "test"})

	service, err := NewService(applier, store, db, nil, testWebhookSecret, time.Hour, logg)
	require.NoError(t, err)
	return &webhookFixture{db: db, service: service, applier: applier, store: store}
}

func signPayload(payload []byte) string {
	timestamp := "1756700000"
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,te=%s,li=", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventID, eventType, intentID, paymentID, failed string) []byte {
	return []byte(fmt.Sprintf(`{
  "data": {
    "id": %q,
    "attributes": {
      "type": %q,
      "data": {
        "id": %q,
        "attributes": {
          "payment_intent_id": %q,
          "failed_message": %q
        }
      }
    }
  }
}`, eventID, eventType, paymentID, intentID, failed))
}

func TestHandlePaidEventAppliesOutcome(t *testing.T) {
	f := newWebhookFixture(t)
	payload := eventPayload("evt_1", "payment.paid", "pi_test_1", "pay_test_1", "")

	require.NoError(t, f.service.Handle(context.Background(), payload, signPayload(payload)))

	require.Equal(t, 1, f.applier.count())
	outcome := f.applier.applied[0]
	assert.Equal(t, "pi_test_1", outcome.ProviderReference)
	assert.Equal(t, "pay_test_1", outcome.PaymentID)
	assert.True(t, outcome.Paid)
	assert.Nil(t, outcome.FailureDetail)

	var audit models.WebhookEvent
	require.NoError(t, f.db.First(&audit, "event_id = ?", "evt_1").Error)
	assert.Equal(t, "payment.paid", audit.EventType)
}

func TestHandleFailedEventCarriesFailureDetail(t *testing.T) {
	f := newWebhookFixture(t)
	payload := eventPayload("evt_2", "payment.failed", "pi_test_1", "pay_test_1", "card declined")

	require.NoError(t, f.service.Handle(context.Background(), payload, signPayload(payload)))

	require.Equal(t, 1, f.applier.count())
	outcome := f.applier.applied[0]
	assert.False(t, outcome.Paid)
	require.NotNil(t, outcome.FailureDetail)
	assert.Equal(t, "card declined", *outcome.FailureDetail)
}

func TestHandleRejectsBadSignatureWithoutSideEffects(t *testing.T) {
	f := newWebhookFixture(t)
	payload := eventPayload("evt_3", "payment.paid", "pi_test_1", "pay_test_1", "")

	err := f.service.Handle(context.Background(), payload, "t=1,te=deadbeef,li=")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
	assert.Zero(t, f.applier.count())

	var count int64
	require.NoError(t, f.db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleRejectsTamperedPayload(t *testing.T) {
	f := newWebhookFixture(t)
	payload := eventPayload("evt_4", "payment.paid", "pi_test_1", "pay_test_1", "")
	header := signPayload(payload)
	tampered := eventPayload("evt_4", "payment.paid", "pi_attacker", "pay_test_1", "")

	err := f.service.Handle(context.Background(), tampered, header)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
	assert.Zero(t, f.applier.count())
}

func TestHandleDuplicateDeliveryAppliedOnce(t *testing.T) {
	f := newWebhookFixture(t)
	payload := eventPayload("evt_5", "payment.paid", "pi_test_1", "pay_test_1", "")
	header := signPayload(payload)

	require.NoError(t, f.service.Handle(context.Background(), payload, header))
	require.NoError(t, f.service.Handle(context.Background(), payload, header))

	assert.Equal(t, 1, f.applier.count())
}

func TestHandleDurableGuardSurvivesRedisFlush(t *testing.T) {
	f := newWebhookFixture(t)
	payload := eventPayload("evt_6", "payment.paid", "pi_test_1", "pay_test_1", "")
	header := signPayload(payload)

	require.NoError(t, f.service.Handle(context.Background(), payload, header))
	f.store.keys = map[string]bool{}
	require.NoError(t, f.service.Handle(context.Background(), payload, header))

	assert.Equal(t, 1, f.applier.count())
}

func TestHandleIgnoresUnknownEventTypes(t *testing.T) {
	f := newWebhookFixture(t)
	payload := eventPayload("evt_7", "source.chargeable", "pi_test_1", "pay_test_1", "")

	require.NoError(t, f.service.Handle(context.Background(), payload, signPayload(payload)))
	assert.Zero(t, f.applier.count())

	var count int64
	require.NoError(t, f.db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleReleasesGuardWhenApplyFails(t *testing.T) {
	f := newWebhookFixture(t)
	payload := eventPayload("evt_8", "payment.paid", "pi_test_1", "pay_test_1", "")
	header := signPayload(payload)

	f.applier.applyErr = pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")
	require.Error(t, f.service.Handle(context.Background(), payload, header))

	f.applier.applyErr = nil
	require.NoError(t, f.service.Handle(context.Background(), payload, header))
	assert.Equal(t, 1, f.applier.count())
}
