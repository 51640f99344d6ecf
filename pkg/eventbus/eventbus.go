// Package eventbus is a minimal in-process publish/subscribe registry for
// the matching engine's order_added, order_removed, and trade_executed
// events.
package eventbus

import (
	"context"

	"github.com/joripage/limitcore/pkg/logging"
	"go.uber.org/zap"
)

// Handler receives an event's payload. Handlers must be total: a panicking
// handler is recovered and logged so it cannot halt the matching loop or
// take down other subscribers, but a slow or blocking handler will stall
// publication for everyone after it, so handlers that need to do real work
// should hand off to their own goroutine or queue.
type Handler func(payload any)

// Bus is a multi-producer/single-consumer-per-event registry: any number
// of goroutines may Publish, but each event's handlers run synchronously,
// in registration order, on the publishing goroutine.
type Bus struct {
	ctx      context.Context
	logger   *logging.Logger
	handlers map[string][]Handler
}

// New constructs an empty Bus. logger may be nil, in which case handler
// panics are swallowed silently.
func New(logger *logging.Logger) *Bus {
	return &Bus{
		ctx:      context.Background(),
		logger:   logger,
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers handler for event.
func (b *Bus) Subscribe(event string, handler Handler) {
	b.handlers[event] = append(b.handlers[event], handler)
}

// Publish invokes every handler registered for event, in order, isolating
// each from the others' and its own panics.
func (b *Bus) Publish(event string, payload any) {
	for _, h := range b.handlers[event] {
		b.safeCall(event, h, payload)
	}
}

func (b *Bus) safeCall(event string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Warn(b.ctx, "eventbus: subscriber panicked", zap.String("event", event), zap.Any("recovered", r))
		}
	}()
	h(payload)
}
