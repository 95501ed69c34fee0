package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, 100000, cfg.Memory.Limit)
	assert.Equal(t, 5000, cfg.Memory.Buffer)
	assert.Equal(t, 95000, cfg.Memory.HotCapacity())
	assert.Equal(t, "lru", cfg.Eviction.Policy)
	assert.Equal(t, "normal", cfg.Eviction.DefaultPriority)
	assert.True(t, cfg.Maintenance.Enabled)
	assert.Equal(t, time.Hour, cfg.Maintenance.OptimizeIdle())
	assert.Equal(t, 24*time.Hour, cfg.Maintenance.ArchiveIdle())
	assert.False(t, cfg.Hooks.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "non-positive limit",
			mutate:  func(c *Config) { c.Memory.Limit = 0 },
			wantErr: "memory.limit must be positive",
		},
		{
			name:    "buffer exceeds limit",
			mutate:  func(c *Config) { c.Memory.Buffer = c.Memory.Limit },
			wantErr: "must be smaller than memory.limit",
		},
		{
			name:    "unknown policy",
			mutate:  func(c *Config) { c.Eviction.Policy = "random" },
			wantErr: "invalid eviction policy",
		},
		{
			name:    "unknown priority",
			mutate:  func(c *Config) { c.Eviction.DefaultPriority = "urgent" },
			wantErr: "eviction.default_priority",
		},
		{
			name:    "bad schedule",
			mutate:  func(c *Config) { c.Maintenance.Schedule = "soon" },
			wantErr: "invalid maintenance schedule",
		},
		{
			name: "hook without script",
			mutate: func(c *Config) {
				c.Hooks.Enabled = true
				c.Hooks.Entries = []HookConfig{{Event: "module.loaded", Enabled: true}}
			},
			wantErr: "hook 0: script is required",
		},
		{
			name: "hook on unknown event",
			mutate: func(c *Config) {
				c.Hooks.Enabled = true
				c.Hooks.Entries = []HookConfig{{Event: "daemon:startup", Script: "true", Enabled: true}}
			},
			wantErr: "invalid hook event",
		},
		{
			name: "metrics without address",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Addr = ""
			},
			wantErr: "metrics.addr is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("disabled sections are not checked", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Maintenance.Enabled = false
		cfg.Maintenance.Schedule = ""
		cfg.Hooks.Entries = []HookConfig{{Enabled: true}}

		assert.NoError(t, cfg.Validate())
	})
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	out := cfg.String()

	assert.Contains(t, out, `"limit": 100000`)
	assert.Contains(t, out, `"policy": "lru"`)
}
