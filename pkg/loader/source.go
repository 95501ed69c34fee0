package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harun/cortex/pkg/module"
	"github.com/harun/cortex/pkg/storage"
)

// ContentSource produces the content of a module that no tier holds yet
type ContentSource interface {
	Content(record module.ModuleRecord) ([]byte, error)
}

// FileSource reads a module's content files from its manifest directory
// and packs them into a bundle
type FileSource struct{}

func (FileSource) Content(record module.ModuleRecord) ([]byte, error) {
	files := make(map[string][]byte, len(record.ContentFiles))
	for _, rel := range record.ContentFiles {
		data, err := os.ReadFile(filepath.Join(record.Dir, rel))
		if err != nil {
			return nil, fmt.Errorf("failed to read content file %s of %s: %w", rel, record.ID, err)
		}
		files[rel] = data
	}
	return storage.EncodeBundle(files)
}

// SourceFunc adapts a function to ContentSource
type SourceFunc func(record module.ModuleRecord) ([]byte, error)

func (f SourceFunc) Content(record module.ModuleRecord) ([]byte, error) {
	return f(record)
}
