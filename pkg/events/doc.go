// Package events provides the synchronous in-process event bus used by the
// registry, store and loader to announce module lifecycle changes.
//
// Invariants:
// - Handlers are matched by exact event name and run in subscription order.
// - A failing or panicking handler never stops the remaining handlers and
//   never reaches the emitter.
// - History is append-only in emission order; only ClearHistory drops it.
//
// Usage:
//
//	bus := events.NewBus(zerolog.Nop())
//	id := bus.On(events.ModuleLoaded, func(e events.Event) error {
//		return nil
//	})
//	bus.Emit(events.ModuleLoaded, events.ModulePayload{ModuleID: "python_core"})
//	bus.Off(events.ModuleLoaded, id)
package events
