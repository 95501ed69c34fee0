package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harun/cortex/internal/observability"
	"github.com/rs/zerolog"
)

// Module lifecycle event names
const (
	ModuleLoaded     = "module.loaded"
	ModuleUnloaded   = "module.unloaded"
	ModuleEvicted    = "module.evicted"
	ModuleLoadFailed = "module.load_failed"
	ModuleRegistered = "module.registered"
	ModulePromoted   = "module.promoted"
	ModuleDemoted    = "module.demoted"
)

// Event is a single entry of the bus history
type Event struct {
	ID        string
	Name      string
	Payload   any
	Timestamp time.Time
}

// ModulePayload is the payload carried by module.* events
type ModulePayload struct {
	ModuleID   string   `json:"module_id"`
	Reason     string   `json:"reason,omitempty"`
	From       string   `json:"from,omitempty"`
	To         string   `json:"to,omitempty"`
	Dependents []string `json:"dependents,omitempty"`
}

// Handler handles a dispatched event. A returned error is logged and
// otherwise ignored.
type Handler func(event Event) error

// SubscriptionID identifies a handler registered with On
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus is an in-process publish/subscribe channel with an append-only
// history. Dispatch is synchronous on the emitting goroutine.
type Bus struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	handlers map[string][]subscription
	nextID   SubscriptionID

	historyMu sync.Mutex
	history   []Event
}

// NewBus creates an empty event bus
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		logger:   logger.With().Str("component", "event-bus").Logger(),
		handlers: make(map[string][]subscription),
	}
}

// On subscribes handler to the exact event name
func (b *Bus) On(name string, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, handler: handler})
	return id
}

// Off removes a subscription. It reports whether the subscription existed.
func (b *Bus) Off(name string, id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.handlers[name]
	if !ok {
		return false
	}

	for i, sub := range subs {
		if sub.id != id {
			continue
		}
		remaining := make([]subscription, 0, len(subs)-1)
		remaining = append(remaining, subs[:i]...)
		remaining = append(remaining, subs[i+1:]...)
		if len(remaining) == 0 {
			delete(b.handlers, name)
		} else {
			b.handlers[name] = remaining
		}
		return true
	}

	return false
}

// Clear removes every handler for the given names, or for all names when
// none are given. History is kept.
func (b *Bus) Clear(names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(names) == 0 {
		b.handlers = make(map[string][]subscription)
		return
	}
	for _, name := range names {
		delete(b.handlers, name)
	}
}

// HandlerCount returns the number of handlers subscribed to name
func (b *Bus) HandlerCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

// Emit records the event and invokes the current subscribers in
// subscription order.
func (b *Bus) Emit(name string, payload any) Event {
	event := Event{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.historyMu.Lock()
	b.history = append(b.history, event)
	b.historyMu.Unlock()

	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[name]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := b.dispatch(sub, event); err != nil {
			observability.RecordHandlerFailure(name)
			b.logger.Warn().
				Err(err).
				Str("event", name).
				Uint64("subscription", uint64(sub.id)).
				Msg("Event handler failed")
		}
	}

	return event
}

func (b *Bus) dispatch(sub subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return sub.handler(event)
}

// History returns a copy of all emitted events in emission order
func (b *Bus) History() []Event {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	return append([]Event(nil), b.history...)
}

// HistoryNames returns the names of all emitted events in emission order
func (b *Bus) HistoryNames() []string {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	names := make([]string, len(b.history))
	for i, event := range b.history {
		names[i] = event.Name
	}
	return names
}

// ClearHistory drops the recorded history
func (b *Bus) ClearHistory() {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	b.history = nil
}
