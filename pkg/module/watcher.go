package module

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ManifestCallback receives the path of a new or rewritten manifest
type ManifestCallback func(path string) error

// WatcherConfig holds configuration for the module directory watcher
type WatcherConfig struct {
	Dir                string
	StabilityThreshold time.Duration
	OnManifest         ManifestCallback
}

// Watcher monitors a modules directory and reports manifest writes once
// they have been stable for the configured threshold.
type Watcher struct {
	logger             zerolog.Logger
	watcher            *fsnotify.Watcher
	dir                string
	stabilityThreshold time.Duration
	onManifest         ManifestCallback

	done           chan struct{}
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex
	stopOnce       sync.Once
}

// NewWatcher creates a new module directory watcher
func NewWatcher(logger zerolog.Logger, config WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if config.StabilityThreshold <= 0 {
		config.StabilityThreshold = 200 * time.Millisecond
	}

	return &Watcher{
		logger:             logger.With().Str("component", "module-watcher").Logger(),
		watcher:            fsw,
		dir:                config.Dir,
		stabilityThreshold: config.StabilityThreshold,
		onManifest:         config.OnManifest,
		done:               make(chan struct{}),
		debounceTimers:     make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. The directory is created if missing.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create modules directory: %w", err)
	}
	if err := w.addDirectoryRecursive(w.dir); err != nil {
		return fmt.Errorf("failed to watch modules directory: %w", err)
	}

	go w.eventLoop()

	w.logger.Info().Str("path", w.dir).Msg("Module watcher started")
	return nil
}

// Stop stops the watcher and cancels pending callbacks
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.debounceMu.Lock()
		for _, timer := range w.debounceTimers {
			timer.Stop()
		}
		clear(w.debounceTimers)
		w.debounceMu.Unlock()

		if closeErr := w.watcher.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close watcher: %w", closeErr)
		}
		w.logger.Info().Msg("Module watcher stopped")
	})
	return err
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addDirectoryRecursive(event.Name)
			// A module directory copied in whole may already hold its manifest.
			manifestPath := filepath.Join(event.Name, ManifestFileName)
			if _, err := os.Stat(manifestPath); err == nil {
				w.debounce(manifestPath)
			}
			return
		}
	}

	if filepath.Base(event.Name) != ManifestFileName {
		return
	}
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
		w.debounce(event.Name)
	}
}

// debounce restarts the stability timer for path
func (w *Watcher) debounce(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
	}

	w.debounceTimers[path] = time.AfterFunc(w.stabilityThreshold, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}

		if w.onManifest == nil {
			return
		}
		if err := w.onManifest(path); err != nil {
			w.logger.Error().Err(err).Str("path", path).Msg("Error handling manifest")
		}
	})
}

func (w *Watcher) addDirectoryRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch path")
		}
		return nil
	})
}

// shouldIgnore skips dot files and directories below the watched root
func (w *Watcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
