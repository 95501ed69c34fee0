package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nonexistent.json")

		loader := NewLoader(configPath)
		cfg, err := loader.Load()

		require.NoError(t, err)
		assert.Equal(t, 100000, cfg.Memory.Limit)
		assert.Equal(t, 5000, cfg.Memory.Buffer)
		assert.Equal(t, "lru", cfg.Eviction.Policy)
	})

	t.Run("load config from file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{
			"memory": {"limit": 20000, "buffer": 1000},
			"eviction": {"policy": "lfu"},
			"modules": {"dirs": ["/srv/modules", "/opt/modules"]},
			"data_dir": "` + tmpDir + `"
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, 20000, cfg.Memory.Limit)
		assert.Equal(t, 1000, cfg.Memory.Buffer)
		assert.Equal(t, 19000, cfg.Memory.HotCapacity())
		assert.Equal(t, "lfu", cfg.Eviction.Policy)
		assert.Equal(t, []string{"/srv/modules", "/opt/modules"}, cfg.Modules.Dirs)
		assert.Equal(t, "*/15 * * * *", cfg.Maintenance.Schedule, "unset keys keep defaults")
	})

	t.Run("load yaml by extension", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "cortex.yaml")

		testConfig := "memory:\n  limit: 8000\n  buffer: 0\nlogging:\n  level: debug\n"
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, 8000, cfg.Memory.HotCapacity())
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("set default paths", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		testConfig := `{"data_dir": "` + tmpDir + `"}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, tmpDir, cfg.DataDir)
		assert.Equal(t, filepath.Join(tmpDir, "warm.db"), cfg.Storage.WarmPath)
		assert.Equal(t, filepath.Join(tmpDir, "cold"), cfg.Storage.ColdDir)
		assert.Equal(t, []string{filepath.Join(tmpDir, "modules")}, cfg.Modules.Dirs)
		assert.Equal(t, filepath.Join(tmpDir, "cortex.log"), cfg.Logging.File)
		assert.Equal(t, filepath.Join(tmpDir, "audit.log"), cfg.Logging.AuditFile)
	})

	t.Run("environment overrides", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("CORTEX_MEMORY_LIMIT", "4242")
		t.Setenv("CORTEX_EVICTION_POLICY", "priority")

		cfg, err := NewLoader(filepath.Join(tmpDir, "missing.json")).Load()

		require.NoError(t, err)
		assert.Equal(t, 4242, cfg.Memory.Limit)
		assert.Equal(t, "priority", cfg.Eviction.Policy)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.json")

		require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	t.Run("save config to file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.json")

		cfg := DefaultConfig()
		cfg.Memory.Limit = 64000
		cfg.Eviction.Policy = "priority"
		cfg.DataDir = tmpDir

		loader := NewLoader(configPath)
		require.NoError(t, loader.Save(cfg))

		_, err := os.Stat(configPath)
		assert.NoError(t, err)

		loadedCfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, 64000, loadedCfg.Memory.Limit)
		assert.Equal(t, "priority", loadedCfg.Eviction.Policy)
		assert.Equal(t, tmpDir, loadedCfg.DataDir)
	})

	t.Run("create directory if not exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "subdir", "config.json")

		require.NoError(t, NewLoader(configPath).Save(DefaultConfig()))

		_, err := os.Stat(filepath.Dir(configPath))
		assert.NoError(t, err)
	})
}

func TestLoaderGetConfigPath(t *testing.T) {
	t.Run("custom path", func(t *testing.T) {
		loader := NewLoader("/custom/path/config.json")
		assert.Equal(t, "/custom/path/config.json", loader.GetConfigPath())
	})

	t.Run("default path", func(t *testing.T) {
		path := NewLoader("").GetConfigPath()
		assert.NotEmpty(t, path)
		assert.Contains(t, path, filepath.Join(".cortex", "cortex.json"))
	})
}
