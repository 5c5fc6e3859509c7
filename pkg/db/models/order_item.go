package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem snapshots a single catalog line within an order. Unit price is
// captured at order time and never updated afterwards.
type OrderItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	TotalPrice      decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null"`
	SpecialRequests *string         `gorm:"column:special_requests"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}
