package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avrportal/tindago-backend/pkg/db/models"
	"github.com/avrportal/tindago-backend/pkg/enums"
)

// CreateOrderInput is the validated payload for placing an order.
type CreateOrderInput struct {
	BusinessID          uuid.UUID
	PickupDatetime      time.Time
	PaymentMethod       enums.PaymentMethod
	SpecialInstructions *string
	DiscountAmount      decimal.Decimal
	TaxAmount           decimal.Decimal
	Items               []OrderItemInput
}

// OrderItemInput is one requested line with its price snapshot.
type OrderItemInput struct {
	ProductID       uuid.UUID
	Quantity        int
	UnitPrice       decimal.Decimal
	SpecialRequests *string
}

// Totals carries the derived money amounts for an order.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// OrderDetail is the read model returned to clients.
type OrderDetail struct {
	Order        *models.Order
	ActiveIntent *models.PaymentIntent
}

// TransitionInput drives a business-side status change.
type TransitionInput struct {
	OrderID        uuid.UUID
	BusinessID     uuid.UUID
	ExpectedStatus enums.OrderStatus
	TargetStatus   enums.OrderStatus
}
