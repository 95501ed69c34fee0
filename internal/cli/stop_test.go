package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRunning(t *testing.T) {
	t.Run("no pid file", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "nonexistent.pid")
		assert.False(t, isRunning(pidFile))
	})

	t.Run("invalid pid file", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "invalid.pid")
		require.NoError(t, os.WriteFile(pidFile, []byte("invalid"), 0644))
		assert.False(t, isRunning(pidFile))
	})

	t.Run("current process", func(t *testing.T) {
		pidFile := filepath.Join(t.TempDir(), "self.pid")
		require.NoError(t, writePIDFile(pidFile))

		pid, err := readPID(pidFile)
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(os.Getpid()), strconv.Itoa(pid))
		assert.True(t, isRunning(pidFile))
	})
}

func TestStopCommand_NotRunning(t *testing.T) {
	configPath := writeTestConfig(t, t.TempDir())

	out, err := executeCommand(t, "--config", configPath, "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "Cortex is not running")
}
