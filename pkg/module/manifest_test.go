package module

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifestYAML = `
id: python_advanced
version: 1.2.0
type: knowledge
metadata:
  name: Advanced Python
  description: Async patterns and typing
  size_tokens: 3000
dependencies:
  - python_core>=1.0.0
conflicts:
  - python_legacy
triggers:
  keywords: [python, asyncio]
content:
  files: [content/patterns.md, content/typing.md]
`

func TestManifestLoader_Parse(t *testing.T) {
	loader := NewManifestLoader(zerolog.Nop())

	t.Run("valid manifest", func(t *testing.T) {
		manifest, err := loader.Parse([]byte(validManifestYAML))
		require.NoError(t, err)

		assert.Equal(t, "python_advanced", manifest.ID)
		assert.Equal(t, "1.2.0", manifest.Version)
		assert.Equal(t, TypeKnowledge, manifest.Type)
		assert.Equal(t, 3000, manifest.Tokens())
		assert.Equal(t, "Advanced Python", manifest.Metadata.Name)
		assert.Equal(t, []string{"python_core>=1.0.0"}, manifest.Dependencies)
		assert.Equal(t, []string{"python", "asyncio"}, manifest.Triggers.Keywords)
		assert.Equal(t, []string{"content/patterns.md", "content/typing.md"}, manifest.ContentFiles())
	})

	t.Run("top level size_tokens", func(t *testing.T) {
		manifest, err := loader.Parse([]byte("id: tiny\nversion: 0.1.0\ntype: memory\nsize_tokens: 42\n"))
		require.NoError(t, err)
		assert.Equal(t, 42, manifest.Tokens())
	})

	tests := []struct {
		name string
		yaml string
	}{
		{"missing type", "id: a\nversion: 1.0.0\nsize_tokens: 1\n"},
		{"unknown type", "id: a\nversion: 1.0.0\ntype: persona\nsize_tokens: 1\n"},
		{"bad version", "id: a\nversion: \"1.0\"\ntype: knowledge\nsize_tokens: 1\n"},
		{"bad id", "id: Bad_ID\nversion: 1.0.0\ntype: knowledge\nsize_tokens: 1\n"},
		{"zero size", "id: a\nversion: 1.0.0\ntype: knowledge\n"},
		{"self dependency", "id: a\nversion: 1.0.0\ntype: knowledge\nsize_tokens: 1\ndependencies: [a]\n"},
		{"duplicate dependency", "id: a\nversion: 1.0.0\ntype: knowledge\nsize_tokens: 1\ndependencies: [b, b>=1.0.0]\n"},
		{"bad constraint", "id: a\nversion: 1.0.0\ntype: knowledge\nsize_tokens: 1\ndependencies: [b<2.0.0]\n"},
		{"escaping content", "id: a\nversion: 1.0.0\ntype: knowledge\nsize_tokens: 1\ncontent:\n  files: [../secret]\n"},
		{"not yaml", "id: [unterminated"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidManifest) || errors.Is(err, ErrInvalidConstraint), err.Error())
		})
	}
}

func TestManifestLoader_LoadManifest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "python_advanced")
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte(validManifestYAML), 0644))

	manifest, err := NewManifestLoader(zerolog.Nop()).LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, dir, manifest.Dir)

	_, err = NewManifestLoader(zerolog.Nop()).LoadManifest(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestNewRecord(t *testing.T) {
	manifest, err := NewManifestLoader(zerolog.Nop()).Parse([]byte(validManifestYAML))
	require.NoError(t, err)

	record, err := newRecord(manifest)
	require.NoError(t, err)

	assert.Equal(t, StatusAvailable, record.Status)
	assert.Equal(t, TierCold, record.Tier)
	assert.Equal(t, []string{"python_core"}, record.Dependencies)
	assert.Equal(t, ">=1.0.0", record.DependencyConstraints["python_core"])
	assert.Equal(t, []Conflict{{ModuleID: "python_legacy"}}, record.Conflicts)
	assert.Zero(t, record.UsageCount)
}
