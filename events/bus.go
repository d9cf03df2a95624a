package events

import (
	"context"
	"runtime/debug"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching. Delivery is synchronous
// and insertion-ordered per event type, which preserves gateway-publish order
// within a guild; callers that need cross-guild concurrency emit from
// per-guild goroutines.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every routable event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Emit delivers an event to all registered handlers in registration order.
// A panic in one handler is logged with its stack and does not prevent
// delivery to the remaining handlers.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	for i, handler := range handlers {
		b.deliver(ctx, event, handler, i)
	}
}

func (b *Bus) deliver(ctx context.Context, event Event, handler Handler, index int) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"eventType":    event.Type(),
				"guildID":      event.Guild(),
				"handlerIndex": index,
				"panic":        r,
				"stack":        string(debug.Stack()),
			}).Error("Event handler panicked")
		}
	}()
	handler(ctx, event)
}
