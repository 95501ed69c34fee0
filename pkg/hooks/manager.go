package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/cortex/pkg/events"
	"github.com/rs/zerolog"
)

const defaultQueueSize = 64

// ErrClosed is returned when an event is queued after Close
var ErrClosed = errors.New("hook manager closed")

// ErrQueueFull is returned when the hook queue cannot take another event
var ErrQueueFull = errors.New("hook queue full")

// Hook runs a shell script when a module lifecycle event is emitted.
type Hook struct {
	ID      string        `json:"id" mapstructure:"id"`
	Event   string        `json:"event" mapstructure:"event"`
	Script  string        `json:"script" mapstructure:"script"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	Enabled bool          `json:"enabled" mapstructure:"enabled"`
}

// Config configures a hook manager.
type Config struct {
	Enabled   bool
	Hooks     []Hook
	QueueSize int
	Logger    zerolog.Logger
}

type job struct {
	event string
	data  map[string]any
}

// Manager runs configured hooks for bus events. Scripts run on a single
// worker goroutine so event emitters never wait on them.
type Manager struct {
	enabled bool
	logger  zerolog.Logger

	mu           sync.RWMutex
	hooksByEvent map[string][]Hook
	closed       bool

	queue chan job
	done  chan struct{}

	bus           *events.Bus
	subscriptions map[string]events.SubscriptionID
}

// NewManager creates a hook manager and starts its worker.
func NewManager(cfg Config) (*Manager, error) {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	manager := &Manager{
		enabled:       cfg.Enabled,
		logger:        cfg.Logger.With().Str("component", "hooks").Logger(),
		hooksByEvent:  make(map[string][]Hook),
		queue:         make(chan job, queueSize),
		done:          make(chan struct{}),
		subscriptions: make(map[string]events.SubscriptionID),
	}

	if cfg.Enabled {
		for _, hook := range cfg.Hooks {
			if !hook.Enabled {
				continue
			}
			event := strings.TrimSpace(hook.Event)
			if event == "" {
				return nil, fmt.Errorf("hook event is required")
			}
			if strings.TrimSpace(hook.Script) == "" {
				return nil, fmt.Errorf("hook script is required for event %q", event)
			}
			manager.hooksByEvent[event] = append(manager.hooksByEvent[event], hook)
		}
	}

	go manager.run()
	return manager, nil
}

// Events returns the event names that have at least one hook
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.hooksByEvent))
	for name := range m.hooksByEvent {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Attach subscribes the manager to every hooked event on bus. Matching
// events are queued for the worker.
func (m *Manager) Attach(bus *events.Bus) {
	if m == nil || !m.enabled || bus == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.bus = bus
	for name := range m.hooksByEvent {
		if _, ok := m.subscriptions[name]; ok {
			continue
		}
		m.subscriptions[name] = bus.On(name, func(event events.Event) error {
			return m.Enqueue(event.Name, eventData(event))
		})
	}
	m.logger.Debug().Int("events", len(m.subscriptions)).Msg("Hooks attached to event bus")
}

// Enqueue schedules hooks for event without waiting for them to run.
func (m *Manager) Enqueue(event string, data map[string]any) error {
	if m == nil || !m.enabled {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	if len(m.hooksByEvent[event]) == 0 {
		return nil
	}

	select {
	case m.queue <- job{event: event, data: data}:
		return nil
	default:
		m.logger.Warn().Str("event", event).Msg("Hook queue full, dropping event")
		return fmt.Errorf("%w: %s", ErrQueueFull, event)
	}
}

func (m *Manager) run() {
	defer close(m.done)
	for j := range m.queue {
		if err := m.Trigger(context.Background(), j.event, j.data); err != nil {
			m.logger.Error().Err(err).Str("event", j.event).Msg("Hook execution failed")
		}
	}
}

// Close detaches from the bus, runs the hooks still queued and stops the
// worker. It is safe to call more than once.
func (m *Manager) Close() {
	if m == nil {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done
		return
	}
	m.closed = true
	for name, id := range m.subscriptions {
		m.bus.Off(name, id)
		delete(m.subscriptions, name)
	}
	close(m.queue)
	m.mu.Unlock()

	<-m.done
}

// Trigger executes the hooks registered for an event and waits for them.
func (m *Manager) Trigger(ctx context.Context, event string, data map[string]any) error {
	if m == nil || !m.enabled {
		return nil
	}
	event = strings.TrimSpace(event)
	if event == "" {
		return fmt.Errorf("event is required")
	}

	m.mu.RLock()
	hooks := append([]Hook(nil), m.hooksByEvent[event]...)
	m.mu.RUnlock()
	if len(hooks) == 0 {
		return nil
	}

	var errs []error
	for _, hook := range hooks {
		if err := m.executeHook(ctx, event, hook, data); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) executeHook(ctx context.Context, event string, hook Hook, data map[string]any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	hookID := hook.ID
	if strings.TrimSpace(hookID) == "" {
		hookID = event
	}

	runCtx := ctx
	cancel := func() {}
	if hook.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, hook.Timeout)
	}
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", hook.Script)
	cmd.Env = buildHookEnvironment(event, data)

	output, err := cmd.CombinedOutput()
	outputText := strings.TrimSpace(string(output))
	if err != nil {
		if outputText != "" {
			return fmt.Errorf("hook %s failed: %w: %s", hookID, err, outputText)
		}
		return fmt.Errorf("hook %s failed: %w", hookID, err)
	}

	m.logger.Debug().
		Str("event", event).
		Str("hook_id", hookID).
		Str("output", outputText).
		Dur("duration", time.Since(start)).
		Msg("Hook executed")
	return nil
}

// eventData flattens a bus event into hook environment data
func eventData(event events.Event) map[string]any {
	data := map[string]any{"event_id": event.ID}

	payload, ok := event.Payload.(events.ModulePayload)
	if !ok {
		if event.Payload != nil {
			data["payload"] = event.Payload
		}
		return data
	}

	data["module"] = payload.ModuleID
	if payload.Reason != "" {
		data["reason"] = payload.Reason
	}
	if payload.From != "" {
		data["from"] = payload.From
	}
	if payload.To != "" {
		data["to"] = payload.To
	}
	if len(payload.Dependents) > 0 {
		data["dependents"] = strings.Join(payload.Dependents, ",")
	}
	return data
}

func buildHookEnvironment(event string, data map[string]any) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env, "CORTEX_HOOK_EVENT="+event)

	if len(data) == 0 {
		return env
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		envKey := "CORTEX_HOOK_" + normalizeEnvKey(key)
		env = append(env, envKey+"="+fmt.Sprintf("%v", data[key]))
	}
	return env
}

func normalizeEnvKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}

	upper := strings.ToUpper(key)
	builder := strings.Builder{}
	builder.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			continue
		}
		builder.WriteRune('_')
	}
	return builder.String()
}
