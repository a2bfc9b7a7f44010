package event

import (
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/Iron-Ham/otto/internal/logging"
)

// Handler handles a published event.
type Handler func(Event)

const wildcard = "*"

type subscription struct {
	id        string
	eventType string
	handler   Handler
}

// Bus is a synchronous pub-sub event bus. A nil *Bus drops every event.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // eventType -> subscriptions
	logger        *logging.Logger
}

// NewBus creates an event bus. Handler panics are reported to logger.
func NewBus(logger *logging.Logger) *Bus {
	return &Bus{
		subscriptions: make(map[string][]subscription),
		logger:        logger,
	}
}

// Subscribe registers a handler for one event type and returns its id.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
	})
	return id
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(wildcard, handler)
}

// Unsubscribe removes a subscription, reporting whether it existed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				b.subscriptions[eventType] = append(subs[:i:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish delivers event to the handlers of its type, then to wildcard
// handlers, each group in registration order. A panicking handler is
// logged and skipped.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	specific := append([]subscription(nil), b.subscriptions[event.EventType()]...)
	all := append([]subscription(nil), b.subscriptions[wildcard]...)
	b.mu.RUnlock()

	for _, sub := range specific {
		b.safeCall(sub.handler, event)
	}
	for _, sub := range all {
		b.safeCall(sub.handler, event)
	}
}

func (b *Bus) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", event.EventType(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	handler(event)
}

// subscriptionCount returns the number of active subscriptions.
func (b *Bus) subscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}
