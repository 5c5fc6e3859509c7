package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avrportal/tindago-backend/pkg/enums"
)

// Order is a pickup order placed by a tourist against a business catalog.
// Orders are never physically deleted; terminal statuses close them out.
type Order struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber         string              `gorm:"column:order_number;not null;uniqueIndex"`
	BusinessID          uuid.UUID           `gorm:"column:business_id;type:uuid;not null"`
	BuyerID             uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	Status              enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentMethod       enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentStatus       enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	Subtotal            decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountAmount      decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TaxAmount           decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	TotalAmount         decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PickupDatetime      time.Time           `gorm:"column:pickup_datetime;not null"`
	ArrivalCode         *string             `gorm:"column:arrival_code"`
	SpecialInstructions *string             `gorm:"column:special_instructions"`
	StockRestored       bool                `gorm:"column:stock_restored;not null;default:false"`
	CancelledAt         *time.Time          `gorm:"column:cancelled_at"`
	Items               []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
