package config

import (
	"encoding/json"
	"errors"
	"time"
)

// Config represents the main cortex configuration
type Config struct {
	// Memory is the hot tier token budget
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`

	// Storage locates the warm and cold tiers
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Modules lists the directories scanned for manifests
	Modules ModulesConfig `json:"modules" mapstructure:"modules"`

	// Eviction selects the eviction policy
	Eviction EvictionConfig `json:"eviction" mapstructure:"eviction"`

	// Maintenance schedules optimize and archive passes
	Maintenance MaintenanceConfig `json:"maintenance" mapstructure:"maintenance"`

	// Hooks run shell scripts on module events
	Hooks HooksConfig `json:"hooks" mapstructure:"hooks"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// MemoryConfig holds the token budget. The hot tier holds at most
// Limit - Buffer tokens.
type MemoryConfig struct {
	Limit  int `json:"limit" mapstructure:"limit"`
	Buffer int `json:"buffer" mapstructure:"buffer"`
}

// HotCapacity returns the number of tokens the hot tier may hold
func (m MemoryConfig) HotCapacity() int {
	return m.Limit - m.Buffer
}

// StorageConfig holds warm and cold tier locations
type StorageConfig struct {
	WarmPath string `json:"warm_path" mapstructure:"warm_path"`
	ColdDir  string `json:"cold_dir" mapstructure:"cold_dir"`
}

// ModulesConfig holds module discovery settings
type ModulesConfig struct {
	Dirs                 []string `json:"dirs" mapstructure:"dirs"`
	Watch                bool     `json:"watch" mapstructure:"watch"`
	StabilityThresholdMs int      `json:"stability_threshold_ms" mapstructure:"stability_threshold_ms"`
}

// EvictionConfig holds eviction settings
type EvictionConfig struct {
	Policy          string `json:"policy" mapstructure:"policy"` // lru, lfu, priority
	DefaultPriority string `json:"default_priority" mapstructure:"default_priority"`
}

// MaintenanceConfig holds the periodic optimize and archive schedule
type MaintenanceConfig struct {
	Enabled             bool   `json:"enabled" mapstructure:"enabled"`
	Schedule            string `json:"schedule" mapstructure:"schedule"`
	OptimizeIdleMinutes int    `json:"optimize_idle_minutes" mapstructure:"optimize_idle_minutes"`
	ArchiveIdleMinutes  int    `json:"archive_idle_minutes" mapstructure:"archive_idle_minutes"`
}

// OptimizeIdle returns the idle period after which loaded modules are unloaded
func (m MaintenanceConfig) OptimizeIdle() time.Duration {
	return time.Duration(m.OptimizeIdleMinutes) * time.Minute
}

// ArchiveIdle returns the idle period after which warm modules move to cold
func (m MaintenanceConfig) ArchiveIdle() time.Duration {
	return time.Duration(m.ArchiveIdleMinutes) * time.Minute
}

// HooksConfig holds lifecycle hook settings
type HooksConfig struct {
	Enabled   bool         `json:"enabled" mapstructure:"enabled"`
	QueueSize int          `json:"queue_size" mapstructure:"queue_size"`
	Entries   []HookConfig `json:"entries" mapstructure:"entries"`
}

// HookConfig describes one hook script
type HookConfig struct {
	ID             string `json:"id" mapstructure:"id"`
	Event          string `json:"event" mapstructure:"event"`
	Script         string `json:"script" mapstructure:"script"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `json:"level" mapstructure:"level"`
	File     string `json:"file" mapstructure:"file"`
	Console  bool   `json:"console" mapstructure:"console"`
	Pretty   bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize  int    `json:"max_size" mapstructure:"max_size"` // MB, 0 disables rotation
	MaxAge   int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress bool   `json:"compress" mapstructure:"compress"`

	// Audit journals module lifecycle events as JSON lines
	Audit     bool   `json:"audit" mapstructure:"audit"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Memory: MemoryConfig{
			Limit:  100000,
			Buffer: 5000,
		},
		Modules: ModulesConfig{
			Watch:                true,
			StabilityThresholdMs: 200,
		},
		Eviction: EvictionConfig{
			Policy:          "lru",
			DefaultPriority: "normal",
		},
		Maintenance: MaintenanceConfig{
			Enabled:             true,
			Schedule:            "*/15 * * * *",
			OptimizeIdleMinutes: 60,
			ArchiveIdleMinutes:  24 * 60,
		},
		Hooks: HooksConfig{
			Enabled:   false,
			QueueSize: 64,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Console:  true,
			MaxSize:  100,
			MaxAge:   7,
			Compress: true,
			Audit:    true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
