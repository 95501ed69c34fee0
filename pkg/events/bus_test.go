package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitAndSubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var received []any
	bus.On("test_event", func(e Event) error {
		received = append(received, e.Payload)
		return nil
	})

	bus.Emit("test_event", map[string]string{"message": "hello"})

	require.Len(t, received, 1)
	assert.Equal(t, map[string]string{"message": "hello"}, received[0])
}

func TestBus_MultipleSubscribersRunInOrder(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var order []string
	bus.On("test_event", func(e Event) error {
		order = append(order, "first")
		return nil
	})
	bus.On("test_event", func(e Event) error {
		order = append(order, "second")
		return nil
	})
	bus.On("other_event", func(e Event) error {
		order = append(order, "other")
		return nil
	})

	bus.Emit("test_event", nil)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBus_Off(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	removedCalls := 0
	keptCalls := 0
	removed := bus.On("test_event", func(e Event) error {
		removedCalls++
		return nil
	})
	bus.On("test_event", func(e Event) error {
		keptCalls++
		return nil
	})

	bus.Emit("test_event", nil)
	assert.True(t, bus.Off("test_event", removed))
	bus.Emit("test_event", nil)

	assert.Equal(t, 1, removedCalls)
	assert.Equal(t, 2, keptCalls)

	t.Run("unknown subscription", func(t *testing.T) {
		assert.False(t, bus.Off("test_event", removed))
		assert.False(t, bus.Off("missing", removed))
	})

	t.Run("last handler frees the name", func(t *testing.T) {
		id := bus.On("lonely", func(e Event) error { return nil })
		assert.Equal(t, 1, bus.HandlerCount("lonely"))
		assert.True(t, bus.Off("lonely", id))

		bus.mu.RLock()
		_, exists := bus.handlers["lonely"]
		bus.mu.RUnlock()
		assert.False(t, exists)
	})
}

func TestBus_HandlerFailureIsIsolated(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var results []any
	bus.On("test_event", func(e Event) error {
		return errors.New("handler error")
	})
	bus.On("test_event", func(e Event) error {
		panic("boom")
	})
	bus.On("test_event", func(e Event) error {
		results = append(results, e.Payload)
		return nil
	})

	assert.NotPanics(t, func() {
		bus.Emit("test_event", "test")
	})
	assert.Equal(t, []any{"test"}, results)
}

func TestBus_History(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	bus.Emit("event1", "data1")
	bus.Emit("event2", "data2")
	bus.Emit("event1", "data3")

	history := bus.History()
	require.Len(t, history, 3)
	assert.Equal(t, "event1", history[0].Name)
	assert.Equal(t, "data1", history[0].Payload)
	assert.Equal(t, "event2", history[1].Name)
	assert.Equal(t, "data3", history[2].Payload)
	assert.NotEmpty(t, history[0].ID)
	assert.False(t, history[0].Timestamp.IsZero())
	assert.False(t, history[2].Timestamp.Before(history[0].Timestamp))

	history[0].Name = "mutated"
	assert.Equal(t, "event1", bus.History()[0].Name)

	bus.ClearHistory()
	assert.Empty(t, bus.History())
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	calls := 0
	handler := func(e Event) error {
		calls++
		return nil
	}
	bus.On("event1", handler)
	bus.On("event2", handler)

	bus.Clear("event1")
	bus.Emit("event1", nil)
	assert.Equal(t, 0, calls)

	bus.Emit("event2", nil)
	assert.Equal(t, 1, calls)

	bus.Clear()
	bus.Emit("event2", nil)
	assert.Equal(t, 1, calls)

	assert.Len(t, bus.History(), 3, "clearing handlers keeps history")
}

func TestBus_HandlerMayEmit(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	bus.On(ModuleLoaded, func(e Event) error {
		bus.Emit(ModulePromoted, e.Payload)
		return nil
	})

	bus.Emit(ModuleLoaded, ModulePayload{ModuleID: "python_core"})

	assert.Equal(t, []string{ModuleLoaded, ModulePromoted}, bus.HistoryNames())
}
