package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/avrportal/tindago-backend/pkg/logger"
	redispkg "github.com/avrportal/tindago-backend/pkg/redis"
)

const channelPrefix = "td:events"

// RedisBus distributes order/payment events over Redis pub/sub so that every
// API instance observes webhook-driven updates regardless of which instance
// received the webhook.
type RedisBus struct {
	client *redispkg.Client
	logg   *logger.Logger
}

// NewRedisBus wraps the shared redis client as an event bus.
func NewRedisBus(client *redispkg.Client, logg *logger.Logger) (*RedisBus, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisBus{client: client, logg: logg}, nil
}

func channelFor(orderID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", channelPrefix, orderID)
}

// Publish fans the event out to subscribers of the order's channel.
func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	if event.OrderID == uuid.Nil {
		return errors.New("event order id required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.client.Raw().Publish(ctx, channelFor(event.OrderID), payload).Err()
}

// Subscribe listens on the order's channel until stop is called or the
// context is done. Malformed payloads are logged and skipped.
func (b *RedisBus) Subscribe(ctx context.Context, orderID uuid.UUID) (<-chan Event, func(), error) {
	if orderID == uuid.Nil {
		return nil, nil, errors.New("order id required")
	}

	sub := b.client.Raw().Subscribe(ctx, channelFor(orderID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channelFor(orderID), err)
	}

	out := make(chan Event, 8)
	done := make(chan struct{})

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				event, err := decodeMessage(msg)
				if err != nil {
					if b.logg != nil {
						b.logg.Warn(ctx, "dropping malformed event payload")
					}
					continue
				}
				select {
				case out <- event:
				default:
					// Slow consumer; the poll loop still covers them.
				}
			}
		}
	}()

	var stopped bool
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		close(done)
		_ = sub.Close()
	}
	return out, stop, nil
}

func decodeMessage(msg *goredis.Message) (Event, error) {
	var event Event
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		return Event{}, err
	}
	return event, nil
}
