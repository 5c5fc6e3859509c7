package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avrportal/tindago-backend/pkg/enums"
)

func TestMemoryBusDeliversToOrderSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()
	orderID := uuid.New()
	otherID := uuid.New()

	events, stop, err := bus.Subscribe(ctx, orderID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	if err := bus.Publish(ctx, Event{Topic: TopicPaymentUpdated, OrderID: otherID, PaymentStatus: enums.PaymentStatusPaid}); err != nil {
		t.Fatalf("publish other: %v", err)
	}
	if err := bus.Publish(ctx, Event{Topic: TopicPaymentUpdated, OrderID: orderID, PaymentStatus: enums.PaymentStatusPaid}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-events:
		if got.OrderID != orderID {
			t.Fatalf("received event for wrong order: %s", got.OrderID)
		}
		if got.PaymentStatus != enums.PaymentStatusPaid {
			t.Fatalf("unexpected payment status %s", got.PaymentStatus)
		}
		if got.OccurredAt.IsZero() {
			t.Fatal("expected occurred_at to be stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case got := <-events:
		t.Fatalf("unexpected extra event: %+v", got)
	default:
	}
}

func TestMemoryBusStopUnsubscribes(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()
	orderID := uuid.New()

	events, stop, err := bus.Subscribe(ctx, orderID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	stop()
	stop() // second stop must be a no-op

	if err := bus.Publish(ctx, Event{Topic: TopicOrderUpdated, OrderID: orderID}); err != nil {
		t.Fatalf("publish after stop: %v", err)
	}

	if _, open := <-events; open {
		t.Fatal("expected channel closed after stop")
	}
}
