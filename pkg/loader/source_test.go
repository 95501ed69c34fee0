package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/cortex/pkg/module"
	"github.com/harun/cortex/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "intro.md"), []byte("# Intro"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.md"), []byte("be nice"), 0644))

	record := module.ModuleRecord{
		ID:           "docs",
		Dir:          dir,
		ContentFiles: []string{"docs/intro.md", "rules.md"},
	}

	data, err := FileSource{}.Content(record)
	require.NoError(t, err)

	files, err := storage.DecodeBundle(data)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"docs/intro.md": []byte("# Intro"),
		"rules.md":      []byte("be nice"),
	}, files)

	t.Run("missing file", func(t *testing.T) {
		record.ContentFiles = append(record.ContentFiles, "gone.md")
		_, err := FileSource{}.Content(record)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gone.md")
	})

	t.Run("no content files", func(t *testing.T) {
		data, err := FileSource{}.Content(module.ModuleRecord{ID: "empty"})
		require.NoError(t, err)
		files, err := storage.DecodeBundle(data)
		require.NoError(t, err)
		assert.Empty(t, files)
	})
}
