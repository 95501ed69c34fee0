package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harun/cortex/pkg/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerTriggerExecutesHookScript(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "loaded.txt")

	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{ID: "loaded", Event: events.ModuleLoaded, Script: "echo loaded > " + outputPath, Enabled: true},
		},
	})
	require.NoError(t, err)
	defer manager.Close()

	require.NoError(t, manager.Trigger(context.Background(), events.ModuleLoaded, nil))

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "loaded\n", string(content))
}

func TestManagerTriggerReturnsJoinedErrors(t *testing.T) {
	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{ID: "fail-1", Event: events.ModuleEvicted, Script: "exit 2", Enabled: true},
			{ID: "fail-2", Event: events.ModuleEvicted, Script: "exit 3", Enabled: true},
		},
	})
	require.NoError(t, err)
	defer manager.Close()

	err = manager.Trigger(context.Background(), events.ModuleEvicted, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook fail-1 failed")
	assert.Contains(t, err.Error(), "hook fail-2 failed")
}

func TestManagerTriggerRespectsTimeout(t *testing.T) {
	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{ID: "timeout", Event: events.ModuleLoaded, Script: "sleep 1", Enabled: true, Timeout: 30 * time.Millisecond},
		},
	})
	require.NoError(t, err)
	defer manager.Close()

	err = manager.Trigger(context.Background(), events.ModuleLoaded, nil)
	require.Error(t, err)
	assert.True(t,
		strings.Contains(err.Error(), "deadline exceeded") || strings.Contains(err.Error(), "signal: killed"),
		"expected timeout-related error, got: %v",
		err,
	)
}

func TestNewManagerValidatesHooks(t *testing.T) {
	_, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks:   []Hook{{Event: " ", Script: "true", Enabled: true}},
	})
	assert.Error(t, err)

	_, err = NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks:   []Hook{{Event: events.ModuleLoaded, Enabled: true}},
	})
	assert.Error(t, err)

	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{Event: events.ModuleLoaded, Script: "true", Enabled: false},
			{Event: events.ModuleUnloaded, Script: "true", Enabled: true},
		},
	})
	require.NoError(t, err)
	defer manager.Close()
	assert.Equal(t, []string{events.ModuleUnloaded}, manager.Events())
}

func TestManagerAttachRunsHooksForBusEvents(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "env.txt")
	script := "echo \"$CORTEX_HOOK_EVENT:$CORTEX_HOOK_MODULE:$CORTEX_HOOK_REASON:$CORTEX_HOOK_DEPENDENTS\" >> " + outputPath

	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{ID: "unloaded", Event: events.ModuleUnloaded, Script: script, Enabled: true},
		},
	})
	require.NoError(t, err)

	bus := events.NewBus(zerolog.Nop())
	manager.Attach(bus)
	assert.Equal(t, 1, bus.HandlerCount(events.ModuleUnloaded))

	bus.Emit(events.ModuleUnloaded, events.ModulePayload{
		ModuleID:   "python_core",
		Reason:     "forced",
		Dependents: []string{"python_web", "python_data"},
	})
	bus.Emit(events.ModuleLoaded, events.ModulePayload{ModuleID: "ignored"})

	manager.Close()
	assert.Equal(t, 0, bus.HandlerCount(events.ModuleUnloaded))

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "module.unloaded:python_core:forced:python_web,python_data\n", string(content))
}

func TestManagerEnqueueAfterClose(t *testing.T) {
	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks:   []Hook{{Event: events.ModuleLoaded, Script: "true", Enabled: true}},
	})
	require.NoError(t, err)

	manager.Close()
	manager.Close()

	err = manager.Enqueue(events.ModuleLoaded, nil)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestManagerEnqueueQueueFull(t *testing.T) {
	release := filepath.Join(t.TempDir(), "release")
	manager, err := NewManager(Config{
		Enabled:   true,
		QueueSize: 1,
		Logger:    zerolog.Nop(),
		Hooks: []Hook{{
			Event:   events.ModuleLoaded,
			Script:  "while [ ! -f " + release + " ]; do sleep 0.01; done",
			Enabled: true,
			Timeout: 5 * time.Second,
		}},
	})
	require.NoError(t, err)

	var full error
	for i := 0; i < 10 && full == nil; i++ {
		full = manager.Enqueue(events.ModuleLoaded, nil)
	}
	assert.True(t, errors.Is(full, ErrQueueFull))

	require.NoError(t, os.WriteFile(release, nil, 0644))
	manager.Close()
}

func TestDisabledManagerIsNoop(t *testing.T) {
	manager, err := NewManager(Config{
		Logger: zerolog.Nop(),
		Hooks:  []Hook{{Event: events.ModuleLoaded, Script: "exit 1", Enabled: true}},
	})
	require.NoError(t, err)
	defer manager.Close()

	bus := events.NewBus(zerolog.Nop())
	manager.Attach(bus)
	assert.Equal(t, 0, bus.HandlerCount(events.ModuleLoaded))
	assert.NoError(t, manager.Trigger(context.Background(), events.ModuleLoaded, nil))
	assert.NoError(t, manager.Enqueue(events.ModuleLoaded, nil))
}
