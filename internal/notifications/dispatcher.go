package notifications

import (
	"context"
	"encoding/json"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/avrportal/tindago-backend/pkg/enums"
	"github.com/avrportal/tindago-backend/pkg/logger"
)

const publishTimeout = 10 * time.Second

// Kind names the buyer-facing notification being sent.
type Kind string

const (
	KindOrderCreated   Kind = "order.created"
	KindOrderStatus    Kind = "order.status_changed"
	KindOrderCancelled Kind = "order.cancelled"
	KindPaymentOutcome Kind = "payment.outcome"
	KindRefundDispatch Kind = "refund.dispatched"
)

// Message is the payload pushed to the notifications topic. Downstream
// delivery (push, SMS) is owned by a separate consumer.
type Message struct {
	Kind          Kind                `json:"kind"`
	OrderID       uuid.UUID           `json:"order_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	OrderStatus   enums.OrderStatus   `json:"order_status,omitempty"`
	PaymentStatus enums.PaymentStatus `json:"payment_status,omitempty"`
	ArrivalCode   *string             `json:"arrival_code,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// Notifier delivers buyer notifications. Notify never blocks the calling
// request and never returns an error; failures are logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.inner.Publish(ctx, msg)
}

// Dispatcher publishes notifications to the Pub/Sub notifications topic.
type Dispatcher struct {
	pub  publisher
	logg *logger.Logger
}

// NewDispatcher wraps the provided Pub/Sub publisher. A nil publisher yields
// a disabled dispatcher that drops every message quietly, which keeps local
// environments working without GCP credentials.
func NewDispatcher(pub *gcppubsub.Publisher, logg *logger.Logger) *Dispatcher {
	d := &Dispatcher{logg: logg}
	if pub != nil {
		d.pub = gcpPublisher{inner: pub}
	}
	return d
}

func newDispatcherWithPublisher(pub publisher, logg *logger.Logger) *Dispatcher {
	return &Dispatcher{pub: pub, logg: logg}
}

// Notify publishes the message without blocking the caller. Publish results
// are awaited on a background goroutine so slow brokers never stall order
// handling.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	if d == nil || d.pub == nil {
		return
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		if d.logg != nil {
			d.logg.Error(ctx, "encode notification", err)
		}
		return
	}

	result := d.pub.Publish(ctx, &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"kind":     string(msg.Kind),
			"order_id": msg.OrderID.String(),
			"buyer_id": msg.BuyerID.String(),
		},
	})

	go func() {
		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if _, err := result.Get(waitCtx); err != nil && d.logg != nil {
			d.logg.Error(waitCtx, "publish notification", err)
		}
	}()
}
