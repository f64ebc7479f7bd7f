package events

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/driftsync/driftsync/internal/logging"
)

// SubscriptionID identifies one handler registration.
type SubscriptionID uint64

// Bus is a type-indexed publish/subscribe hub. Handlers for a concrete event
// type run synchronously on the emitter's goroutine, in subscription order.
//
// Dispatch copies the handler list under the read lock and invokes handlers
// outside it, so a handler may subscribe, unsubscribe, or emit again without
// deadlocking. A handler that panics is logged and the remaining handlers
// for that emission still run. Handlers must not assume which goroutine
// they run on.
type Bus struct {
	mu       sync.RWMutex
	nextID   SubscriptionID
	handlers map[reflect.Type][]registration
}

type registration struct {
	id SubscriptionID
	fn func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]registration)}
}

// Subscribe registers fn for events of type E and returns its subscription id.
func Subscribe[E Event](b *Bus, fn func(E)) SubscriptionID {
	t := reflect.TypeFor[E]()
	return b.subscribe(t, func(ev Event) { fn(ev.(E)) })
}

// Unsubscribe removes the registration for type E with the given id.
// Unknown ids are a no-op.
func Unsubscribe[E Event](b *Bus, id SubscriptionID) {
	b.unsubscribe(reflect.TypeFor[E](), id)
}

// SubscriberCount reports the number of handlers registered for type E.
func SubscriberCount[E Event](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[reflect.TypeFor[E]()])
}

func (b *Bus) subscribe(t reflect.Type, fn func(Event)) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], registration{id: id, fn: fn})
	return id
}

func (b *Bus) unsubscribe(t reflect.Type, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.handlers[t]
	for i, r := range regs {
		if r.id == id {
			b.handlers[t] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Emit dispatches ev to every handler registered for its concrete type.
// Emitting with no subscribers is a no-op.
func (b *Bus) Emit(ev Event) {
	t := reflect.TypeOf(ev)

	b.mu.RLock()
	regs := b.handlers[t]
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	b.mu.RUnlock()

	for _, r := range snapshot {
		b.dispatch(t, r, ev)
	}
}

func (b *Bus) dispatch(t reflect.Type, r registration, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("event handler panicked",
				zap.String("event", t.String()),
				zap.Uint64("subscription", uint64(r.id)),
				zap.Any("panic", rec))
		}
	}()
	r.fn(ev)
}

// Clear drops every registration.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[reflect.Type][]registration)
}
