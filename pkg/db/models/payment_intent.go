package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avrportal/tindago-backend/pkg/enums"
)

// PaymentIntent is one gateway-side attempt to collect payment for an order.
// Retries append a new row and mark the prior one superseded; the history is
// never deleted.
type PaymentIntent struct {
	ID                uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	Method            enums.PaymentMethod       `gorm:"column:method;type:payment_method;not null"`
	Status            enums.PaymentIntentStatus `gorm:"column:status;type:payment_intent_status;not null;default:'requires_action'"`
	Amount            decimal.Decimal           `gorm:"column:amount;type:numeric(12,2);not null"`
	ProviderReference string                    `gorm:"column:provider_reference;not null"`
	ProviderPaymentID *string                   `gorm:"column:provider_payment_id"`
	ClientKey         string                    `gorm:"column:client_key;not null"`
	NextActionURL     *string                   `gorm:"column:next_action_url"`
	Superseded        bool                      `gorm:"column:superseded;not null;default:false"`
	FailureReason     *string                   `gorm:"column:failure_reason"`
	CreatedAt         time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
