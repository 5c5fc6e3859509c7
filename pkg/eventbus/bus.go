package eventbus

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avrportal/tindago-backend/pkg/enums"
)

const (
	TopicOrderUpdated   = "order:updated"
	TopicPaymentUpdated = "payment:updated"
)

// Event is the realtime notification published whenever an order or its
// payment changes. Events are keyed by order id so clients can subscribe to a
// single in-flight order.
type Event struct {
	Topic         string              `json:"topic"`
	OrderID       uuid.UUID           `json:"order_id"`
	OrderStatus   enums.OrderStatus   `json:"order_status,omitempty"`
	PaymentStatus enums.PaymentStatus `json:"payment_status,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// Bus is the publish/subscribe capability handed to the payment coordinator.
// The core never owns a connection singleton, only this interface.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe delivers events for the given order until the returned stop
	// function is called or the context is done.
	Subscribe(ctx context.Context, orderID uuid.UUID) (<-chan Event, func(), error)
}
