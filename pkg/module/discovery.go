package module

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Discovery scans module directories for manifests
type Discovery struct {
	logger zerolog.Logger
	loader *ManifestLoader
}

// NewDiscovery creates a new discovery instance
func NewDiscovery(logger zerolog.Logger) *Discovery {
	return &Discovery{
		logger: logger.With().Str("component", "module-discovery").Logger(),
		loader: NewManifestLoader(logger),
	}
}

// Discover scans every directory for <dir>/<module>/manifest.yaml.
// Unreadable or invalid manifests are logged and skipped; missing
// directories are ignored.
func (d *Discovery) Discover(dirs ...string) ([]*Manifest, error) {
	var manifests []*Manifest

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		found, err := d.scanDirectory(dir)
		if err != nil {
			return manifests, err
		}
		manifests = append(manifests, found...)
	}

	d.logger.Info().Int("count", len(manifests)).Msg("Module discovery completed")
	return manifests, nil
}

func (d *Discovery) scanDirectory(dir string) ([]*Manifest, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			d.logger.Debug().Str("dir", dir).Msg("Directory does not exist, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var manifests []*Manifest
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		manifestPath := filepath.Join(dir, entry.Name(), ManifestFileName)
		if _, err := os.Stat(manifestPath); err != nil {
			if !os.IsNotExist(err) {
				d.logger.Warn().Err(err).Str("path", manifestPath).Msg("Failed to check for manifest")
			}
			continue
		}

		manifest, err := d.loader.LoadManifest(manifestPath)
		if err != nil {
			d.logger.Warn().Err(err).Str("path", manifestPath).Msg("Skipping invalid manifest")
			continue
		}

		manifests = append(manifests, manifest)
		d.logger.Debug().
			Str("module", manifest.ID).
			Str("path", manifestPath).
			Msg("Discovered module")
	}

	return manifests, nil
}

// RegisterDiscovered registers manifests found by discovery. The whole set
// is first tried as one batch; if that fails, manifests are registered one
// at a time in passes so that a single bad manifest only excludes itself
// and whatever depends on it.
func (r *Registry) RegisterDiscovered(manifests []*Manifest) ([]string, []error) {
	if len(manifests) == 0 {
		return nil, nil
	}
	if ids, err := r.RegisterAll(manifests); err == nil {
		return ids, nil
	}

	var (
		ids       []string
		permanent []error
		pending   = manifests
	)
	for {
		var (
			next       []*Manifest
			deferred   []error
			progressed bool
		)
		for _, manifest := range pending {
			id, err := r.Register(manifest)
			switch {
			case err == nil:
				ids = append(ids, id)
				progressed = true
			case errors.Is(err, ErrModuleNotFound):
				next = append(next, manifest)
				deferred = append(deferred, err)
			default:
				permanent = append(permanent, fmt.Errorf("failed to register %s: %w", manifest.ID, err))
			}
		}

		if len(next) == 0 || !progressed {
			return ids, append(permanent, deferred...)
		}
		pending = next
	}
}
