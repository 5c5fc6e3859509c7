package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBus is a process-local Bus used by tests and single-instance
// deployments without Redis.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[int]chan Event
	next int
}

// NewMemoryBus builds an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[uuid.UUID]map[int]chan Event)}
}

// Publish delivers the event to every live subscriber for the order.
func (b *MemoryBus) Publish(_ context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[event.OrderID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a listener for the order's events.
func (b *MemoryBus) Subscribe(_ context.Context, orderID uuid.UUID) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 8)
	if b.subs[orderID] == nil {
		b.subs[orderID] = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	b.subs[orderID][id] = ch

	var once sync.Once
	stop := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subs[orderID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(b.subs, orderID)
				}
			}
			close(ch)
		})
	}
	return ch, stop, nil
}
