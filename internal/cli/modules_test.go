package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig writes a config rooted at dataDir and returns its path
func writeTestConfig(t *testing.T, dataDir string) string {
	t.Helper()

	configPath := filepath.Join(dataDir, "cortex.json")
	content := fmt.Sprintf(`{
		"data_dir": %q,
		"memory": {"limit": 2000, "buffer": 0},
		"modules": {"dirs": [%q], "watch": false},
		"maintenance": {"enabled": false},
		"logging": {"level": "warn", "console": false, "max_size": 0}
	}`, dataDir, filepath.Join(dataDir, "modules"))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func writeTestModule(t *testing.T, dataDir, id string, size int, deps ...string) {
	t.Helper()

	dir := filepath.Join(dataDir, "modules", id)
	require.NoError(t, os.MkdirAll(dir, 0755))
	manifest := fmt.Sprintf("id: %s\nversion: 1.0.0\ntype: knowledge\nmetadata:\n  name: %s guide\n  size_tokens: %d\ntriggers:\n  keywords: [%s]\n", id, id, size, id+"-kw")
	if len(deps) > 0 {
		manifest += "dependencies:\n"
		for _, dep := range deps {
			manifest += "  - " + dep + "\n"
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0644))
}

// executeCommand runs the root command with args and resets flag state
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		cfgFile, logLevel = "", ""
		listType, listStatus = "", ""
		loadPriority = ""
		configureLimit, configureBuffer, configurePolicy = 0, -1, ""
		configureDirs, configureForce = nil, false
		archiveIdle, stopTimeout = 0, 30
		for _, name := range []string{"help", "version"} {
			if f := rootCmd.Flags().Lookup(name); f != nil {
				f.Value.Set("false")
				f.Changed = false
			}
		}
	})

	cmd := GetRootCmd()
	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return output.String(), err
}

func TestModulesCommands(t *testing.T) {
	dataDir := t.TempDir()
	configPath := writeTestConfig(t, dataDir)
	writeTestModule(t, dataDir, "core", 500)
	writeTestModule(t, dataDir, "web", 700, "core")

	t.Run("list", func(t *testing.T) {
		out, err := executeCommand(t, "--config", configPath, "modules", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "core")
		assert.Contains(t, out, "web")
		assert.Contains(t, out, "DEPENDENCIES")
	})

	t.Run("search", func(t *testing.T) {
		out, err := executeCommand(t, "--config", configPath, "modules", "search", "web-kw")
		require.NoError(t, err)
		assert.Contains(t, out, "web")
		assert.NotContains(t, out, "core ")
	})

	t.Run("search without match", func(t *testing.T) {
		out, err := executeCommand(t, "--config", configPath, "modules", "search", "nothing")
		require.NoError(t, err)
		assert.Contains(t, out, "No modules found")
	})

	t.Run("deps", func(t *testing.T) {
		out, err := executeCommand(t, "--config", configPath, "modules", "deps", "web")
		require.NoError(t, err)
		assert.Contains(t, out, "Load order: core -> web")
	})

	t.Run("deps of unknown module", func(t *testing.T) {
		_, err := executeCommand(t, "--config", configPath, "modules", "deps", "ghost")
		assert.Error(t, err)
	})
}

func TestLoadAndStatusCommands(t *testing.T) {
	dataDir := t.TempDir()
	configPath := writeTestConfig(t, dataDir)
	writeTestModule(t, dataDir, "core", 500)
	writeTestModule(t, dataDir, "web", 700, "core")
	writeTestModule(t, dataDir, "huge", 5000)

	out, err := executeCommand(t, "--config", configPath, "load", "web", "--priority", "high")
	require.NoError(t, err)
	assert.Contains(t, out, "web: loaded core, web")
	assert.Contains(t, out, "Memory: 1200/2000 tokens")

	out, err = executeCommand(t, "--config", configPath, "load", "huge")
	require.Error(t, err)
	assert.Contains(t, out, "insufficient")

	out, err = executeCommand(t, "--config", configPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Service: stopped")
	assert.Contains(t, out, "Modules: 3 registered")
	assert.Regexp(t, `warm\s+2 modules\s+1200 tokens`, out)
}

func TestConfigureCommand(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "cortex.json")

	out, err := executeCommand(t, "--config", configPath, "configure", "--memory-limit", "50000", "--policy", "lfu", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration saved to: "+configPath)

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"limit": 50000`)
	assert.Contains(t, string(content), `"policy": "lfu"`)

	_, err = executeCommand(t, "--config", configPath, "configure", "--policy", "random")
	assert.Error(t, err)
}
