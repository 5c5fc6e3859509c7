package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avrportal/tindago-backend/pkg/enums"
)

// RefundRequest queues a gateway refund produced by a cancellation. The
// worker dispatches queued rows with backoff; dispatch never blocks the
// cancellation response.
type RefundRequest struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentIntentID uuid.UUID          `gorm:"column:payment_intent_id;type:uuid;not null"`
	Amount          decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Status          enums.RefundStatus `gorm:"column:status;type:refund_status;not null;default:'queued'"`
	Attempts        int                `gorm:"column:attempts;not null;default:0"`
	LastError       *string            `gorm:"column:last_error"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
