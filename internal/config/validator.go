package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validPolicies   = []string{"lru", "lfu", "priority"}
	validPriorities = []string{"low", "normal", "high", "critical"}
	validHookEvents = []string{
		"module.loaded",
		"module.unloaded",
		"module.evicted",
		"module.load_failed",
		"module.registered",
		"module.promoted",
		"module.demoted",
	}
)

// Validator validates configuration values
type Validator struct {
	parser cron.Parser
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// ValidateMemory validates the token budget
func (v *Validator) ValidateMemory(memory MemoryConfig) error {
	if memory.Limit <= 0 {
		return fmt.Errorf("memory.limit must be positive, got %d", memory.Limit)
	}
	if memory.Buffer < 0 {
		return fmt.Errorf("memory.buffer must be >= 0, got %d", memory.Buffer)
	}
	if memory.Buffer >= memory.Limit {
		return fmt.Errorf("memory.buffer (%d) must be smaller than memory.limit (%d)", memory.Buffer, memory.Limit)
	}
	return nil
}

// ValidateEvictionPolicy validates an eviction policy name
func (v *Validator) ValidateEvictionPolicy(policy string) error {
	if policy == "" {
		return nil // Use default
	}
	return oneOf("eviction policy", policy, validPolicies)
}

// ValidatePriority validates a load priority name
func (v *Validator) ValidatePriority(priority string) error {
	if priority == "" {
		return nil
	}
	return oneOf("priority", strings.ToLower(priority), validPriorities)
}

// ValidateSchedule validates a cron expression
func (v *Validator) ValidateSchedule(schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return fmt.Errorf("maintenance schedule cannot be empty")
	}
	if _, err := v.parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	return oneOf("log level", level, validLogLevels)
}

// ValidateHookEvent validates the event a hook subscribes to
func (v *Validator) ValidateHookEvent(event string) error {
	return oneOf("hook event", event, validHookEvents)
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateMemory(cfg.Memory); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateEvictionPolicy(cfg.Eviction.Policy); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidatePriority(cfg.Eviction.DefaultPriority); err != nil {
		errors = append(errors, fmt.Errorf("eviction.default_priority: %w", err))
	}

	if cfg.Modules.StabilityThresholdMs < 0 {
		errors = append(errors, fmt.Errorf("modules.stability_threshold_ms must be >= 0"))
	}

	if cfg.Maintenance.Enabled {
		if err := v.ValidateSchedule(cfg.Maintenance.Schedule); err != nil {
			errors = append(errors, err)
		}
		if cfg.Maintenance.OptimizeIdleMinutes < 0 {
			errors = append(errors, fmt.Errorf("maintenance.optimize_idle_minutes must be >= 0"))
		}
		if cfg.Maintenance.ArchiveIdleMinutes < 0 {
			errors = append(errors, fmt.Errorf("maintenance.archive_idle_minutes must be >= 0"))
		}
	}

	if cfg.Hooks.Enabled {
		if cfg.Hooks.QueueSize < 0 {
			errors = append(errors, fmt.Errorf("hooks.queue_size must be >= 0"))
		}
		for i, hook := range cfg.Hooks.Entries {
			if !hook.Enabled {
				continue
			}
			if strings.TrimSpace(hook.Event) == "" {
				errors = append(errors, fmt.Errorf("hook %d: event is required", i))
			} else if err := v.ValidateHookEvent(hook.Event); err != nil {
				errors = append(errors, fmt.Errorf("hook %d: %w", i, err))
			}
			if strings.TrimSpace(hook.Script) == "" {
				errors = append(errors, fmt.Errorf("hook %d: script is required", i))
			}
			if hook.TimeoutSeconds < 0 {
				errors = append(errors, fmt.Errorf("hook %d: timeout_seconds must be >= 0", i))
			}
		}
	}

	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) == "" {
		errors = append(errors, fmt.Errorf("metrics.addr is required when metrics are enabled"))
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}

func oneOf(what, value string, valid []string) error {
	for _, candidate := range valid {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %s (must be one of: %s)", what, value, strings.Join(valid, ", "))
}
