package models

import "time"

// WebhookEvent records every provider event applied to local state. The row
// doubles as a durable idempotency check behind the Redis guard.
type WebhookEvent struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;autoCreateTime"`
}
