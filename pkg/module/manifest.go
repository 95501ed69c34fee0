package module

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ManifestFileName is the file discovery looks for in each module directory
const ManifestFileName = "manifest.yaml"

// Manifest is the manifest.yaml structure describing a module
type Manifest struct {
	ID           string              `yaml:"id" json:"id"`
	Version      string              `yaml:"version" json:"version"`
	Type         ModuleType          `yaml:"type" json:"type"`
	SizeTokens   int                 `yaml:"size_tokens,omitempty" json:"size_tokens,omitempty"`
	Metadata     ManifestMetadata    `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Dependencies []string            `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Conflicts    []string            `yaml:"conflicts,omitempty" json:"conflicts,omitempty"`
	Triggers     ManifestTriggers    `yaml:"triggers,omitempty" json:"triggers,omitempty"`
	Content      map[string][]string `yaml:"content,omitempty" json:"content,omitempty"`

	// Dir is the directory the manifest was read from; content paths are
	// relative to it.
	Dir string `yaml:"-" json:"-"`
}

// ManifestMetadata holds descriptive manifest fields
type ManifestMetadata struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	SizeTokens  int    `yaml:"size_tokens,omitempty" json:"size_tokens,omitempty"`
}

// ManifestTriggers lists keywords that make a module discoverable by search
type ManifestTriggers struct {
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
}

// Tokens returns the declared size, preferring metadata.size_tokens
func (m *Manifest) Tokens() int {
	if m.Metadata.SizeTokens > 0 {
		return m.Metadata.SizeTokens
	}
	return m.SizeTokens
}

// ContentFiles flattens every content list in key order
func (m *Manifest) ContentFiles() []string {
	keys := make([]string, 0, len(m.Content))
	for k := range m.Content {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var files []string
	for _, k := range keys {
		files = append(files, m.Content[k]...)
	}
	return files
}

// ManifestLoader loads and validates module manifests
type ManifestLoader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewManifestLoader creates a new manifest loader
func NewManifestLoader(logger zerolog.Logger) *ManifestLoader {
	return &ManifestLoader{
		logger:       logger.With().Str("component", "manifest-loader").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(ManifestSchema),
	}
}

// LoadManifest reads and validates a manifest file
func (m *ManifestLoader) LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	manifest, err := m.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	manifest.Dir = filepath.Dir(path)

	m.logger.Debug().
		Str("id", manifest.ID).
		Str("version", manifest.Version).
		Str("path", path).
		Msg("Loaded manifest")

	return manifest, nil
}

// Parse decodes and validates manifest YAML
func (m *ManifestLoader) Parse(data []byte) (*Manifest, error) {
	var document map[string]any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("%w: failed to parse manifest YAML: %v", ErrInvalidManifest, err)
	}
	if document == nil {
		return nil, fmt.Errorf("%w: empty manifest", ErrInvalidManifest)
	}

	if err := m.validateSchema(document); err != nil {
		return nil, err
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: failed to decode manifest: %v", ErrInvalidManifest, err)
	}

	if err := ValidateManifest(&manifest); err != nil {
		return nil, err
	}

	return &manifest, nil
}

// validateSchema validates the decoded document against the JSON schema
func (m *ManifestLoader) validateSchema(document map[string]any) error {
	result, err := gojsonschema.Validate(m.schemaLoader, gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("%w: schema validation error: %v", ErrInvalidManifest, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidManifest, strings.Join(messages, "; "))
	}

	return nil
}

// ValidateManifest performs validation beyond the JSON schema. It is also
// used for manifests built in code.
func ValidateManifest(manifest *Manifest) error {
	if !ValidID(manifest.ID) {
		return fmt.Errorf("%w: invalid module ID format: %q (lowercase alphanumeric, '_' and '-')", ErrInvalidManifest, manifest.ID)
	}

	if !semverRegex.MatchString(manifest.Version) {
		return fmt.Errorf("%w: invalid version format: %q (must be semver: X.Y.Z)", ErrInvalidManifest, manifest.Version)
	}

	if !ValidTypes[manifest.Type] {
		return fmt.Errorf("%w: unrecognized module type: %q", ErrInvalidManifest, manifest.Type)
	}

	if manifest.Tokens() <= 0 {
		return fmt.Errorf("%w: size_tokens must be a positive integer", ErrInvalidManifest)
	}

	seen := make(map[string]bool, len(manifest.Dependencies))
	for i, entry := range manifest.Dependencies {
		id, _, err := ParseRequirement(entry)
		if err != nil {
			return fmt.Errorf("dependency %d: %w", i, err)
		}
		if id == manifest.ID {
			return fmt.Errorf("%w: module %s depends on itself", ErrInvalidManifest, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate dependency %s", ErrInvalidManifest, id)
		}
		seen[id] = true
	}

	for i, entry := range manifest.Conflicts {
		if _, _, err := ParseRequirement(entry); err != nil {
			return fmt.Errorf("conflict %d: %w", i, err)
		}
	}

	for _, file := range manifest.ContentFiles() {
		if filepath.IsAbs(file) || strings.HasPrefix(filepath.Clean(file), "..") {
			return fmt.Errorf("%w: content path %q must stay inside the module directory", ErrInvalidManifest, file)
		}
	}

	return nil
}

// newRecord builds a catalog record from a validated manifest
func newRecord(manifest *Manifest) (*ModuleRecord, error) {
	record := &ModuleRecord{
		ID:           manifest.ID,
		Name:         manifest.Metadata.Name,
		Description:  manifest.Metadata.Description,
		Version:      manifest.Version,
		Type:         manifest.Type,
		SizeTokens:   manifest.Tokens(),
		Triggers:     append([]string(nil), manifest.Triggers.Keywords...),
		Dir:          manifest.Dir,
		ContentFiles: manifest.ContentFiles(),
		Status:       StatusAvailable,
		Tier:         TierCold,
	}

	for _, entry := range manifest.Dependencies {
		id, constraint, err := ParseRequirement(entry)
		if err != nil {
			return nil, err
		}
		record.Dependencies = append(record.Dependencies, id)
		if constraint != "" {
			if record.DependencyConstraints == nil {
				record.DependencyConstraints = make(map[string]string)
			}
			record.DependencyConstraints[id] = constraint
		}
	}

	for _, entry := range manifest.Conflicts {
		id, constraint, err := ParseRequirement(entry)
		if err != nil {
			return nil, err
		}
		record.Conflicts = append(record.Conflicts, Conflict{ModuleID: id, Constraint: constraint})
	}

	return record, nil
}
