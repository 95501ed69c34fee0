package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	dirName  = ".cortex"
	fileName = "cortex.json"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and CORTEX_ environment
// variables. A missing file yields the defaults.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to get home directory")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType(configType(configPath))

	// Read environment variables, e.g. CORTEX_MEMORY_LIMIT
	v.SetEnvPrefix("CORTEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := fillPaths(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every scalar key so that AutomaticEnv can
// override keys absent from the file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("memory.limit", cfg.Memory.Limit)
	v.SetDefault("memory.buffer", cfg.Memory.Buffer)
	v.SetDefault("storage.warm_path", cfg.Storage.WarmPath)
	v.SetDefault("storage.cold_dir", cfg.Storage.ColdDir)
	v.SetDefault("modules.dirs", cfg.Modules.Dirs)
	v.SetDefault("modules.watch", cfg.Modules.Watch)
	v.SetDefault("modules.stability_threshold_ms", cfg.Modules.StabilityThresholdMs)
	v.SetDefault("eviction.policy", cfg.Eviction.Policy)
	v.SetDefault("eviction.default_priority", cfg.Eviction.DefaultPriority)
	v.SetDefault("maintenance.enabled", cfg.Maintenance.Enabled)
	v.SetDefault("maintenance.schedule", cfg.Maintenance.Schedule)
	v.SetDefault("maintenance.optimize_idle_minutes", cfg.Maintenance.OptimizeIdleMinutes)
	v.SetDefault("maintenance.archive_idle_minutes", cfg.Maintenance.ArchiveIdleMinutes)
	v.SetDefault("hooks.enabled", cfg.Hooks.Enabled)
	v.SetDefault("hooks.queue_size", cfg.Hooks.QueueSize)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)
	v.SetDefault("logging.audit", cfg.Logging.Audit)
	v.SetDefault("logging.audit_file", cfg.Logging.AuditFile)
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("data_dir", cfg.DataDir)
}

// fillPaths derives unset paths from the data directory
func fillPaths(cfg *Config) error {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, dirName)
	}

	if cfg.Storage.WarmPath == "" {
		cfg.Storage.WarmPath = filepath.Join(cfg.DataDir, "warm.db")
	}
	if cfg.Storage.ColdDir == "" {
		cfg.Storage.ColdDir = filepath.Join(cfg.DataDir, "cold")
	}
	if len(cfg.Modules.Dirs) == 0 {
		cfg.Modules.Dirs = []string{filepath.Join(cfg.DataDir, "modules")}
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "cortex.log")
	}
	if cfg.Logging.AuditFile == "" {
		cfg.Logging.AuditFile = filepath.Join(cfg.DataDir, "audit.log")
	}
	return nil
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to get home directory")
	}

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType(configType(configPath))

	v.Set("memory", cfg.Memory)
	v.Set("storage", cfg.Storage)
	v.Set("modules", cfg.Modules)
	v.Set("eviction", cfg.Eviction)
	v.Set("maintenance", cfg.Maintenance)
	v.Set("hooks", cfg.Hooks)
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		// If file doesn't exist, create it
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, dirName, fileName)
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
