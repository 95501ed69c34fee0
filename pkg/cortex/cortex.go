package cortex

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/harun/cortex/internal/config"
	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/pkg/events"
	"github.com/harun/cortex/pkg/hooks"
	"github.com/harun/cortex/pkg/loader"
	"github.com/harun/cortex/pkg/module"
	"github.com/harun/cortex/pkg/storage"
	"github.com/rs/zerolog"
)

// Cortex wires the registry, tiered store, loader, hooks and background
// jobs built from one configuration.
type Cortex struct {
	logger zerolog.Logger
	config *config.Config

	bus         *events.Bus
	registry    *module.Registry
	store       *storage.TieredStore
	loader      *loader.Loader
	hooks       *hooks.Manager
	audit       *observability.AuditLogger
	maintenance *loader.Maintenance
	discovery   *module.Discovery
	manifests   *module.ManifestLoader

	defaultPriority loader.Priority
	watchers        []*module.Watcher
}

// New builds every component from cfg. The warm database and cold
// directory are created when missing.
func New(cfg *config.Config, logger zerolog.Logger) (*Cortex, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	policy, err := loader.NewEvictionPolicy(cfg.Eviction.Policy)
	if err != nil {
		return nil, err
	}
	priority, err := loader.ParsePriority(cfg.Eviction.DefaultPriority)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	warm, err := storage.NewWarmTier(cfg.Storage.WarmPath, logger)
	if err != nil {
		return nil, err
	}
	cold, err := storage.NewColdTier(cfg.Storage.ColdDir, logger)
	if err != nil {
		warm.Close()
		return nil, err
	}
	store := storage.NewTieredStore(logger, storage.NewHotTier(cfg.Memory.HotCapacity()), warm, cold)

	bus := events.NewBus(logger)
	registry := module.NewRegistry(logger, bus)

	hookManager, err := hooks.NewManager(hooks.Config{
		Enabled:   cfg.Hooks.Enabled,
		Hooks:     hookEntries(cfg.Hooks.Entries),
		QueueSize: cfg.Hooks.QueueSize,
		Logger:    logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create hook manager: %w", err)
	}
	hookManager.Attach(bus)

	var audit *observability.AuditLogger
	if cfg.Logging.Audit && cfg.Logging.AuditFile != "" {
		audit, err = observability.NewAuditLogger(cfg.Logging.AuditFile)
		if err != nil {
			hookManager.Close()
			store.Close()
			return nil, err
		}
		attachAudit(bus, audit)
	}

	l := loader.New(logger, registry, store, bus, loader.Config{Policy: policy})

	c := &Cortex{
		logger:          logger.With().Str("component", "cortex").Logger(),
		config:          cfg,
		bus:             bus,
		registry:        registry,
		store:           store,
		loader:          l,
		hooks:           hookManager,
		audit:           audit,
		discovery:       module.NewDiscovery(logger),
		manifests:       module.NewManifestLoader(logger),
		defaultPriority: priority,
	}

	if cfg.Maintenance.Enabled {
		c.maintenance, err = loader.NewMaintenance(logger, l, loader.MaintenanceConfig{
			Schedule:     cfg.Maintenance.Schedule,
			OptimizeIdle: cfg.Maintenance.OptimizeIdle(),
			ArchiveIdle:  cfg.Maintenance.ArchiveIdle(),
		})
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	c.logger.Info().
		Int("hot_capacity", cfg.Memory.HotCapacity()).
		Str("policy", policy.Name()).
		Str("data_dir", cfg.DataDir).
		Msg("Cortex initialized")
	return c, nil
}

// auditedEvents are journaled when auditing is enabled
var auditedEvents = []string{
	events.ModuleRegistered,
	events.ModuleLoaded,
	events.ModuleLoadFailed,
	events.ModuleUnloaded,
	events.ModuleEvicted,
	events.ModulePromoted,
	events.ModuleDemoted,
}

func attachAudit(bus *events.Bus, audit *observability.AuditLogger) {
	for _, name := range auditedEvents {
		bus.On(name, func(event events.Event) error {
			entry := observability.AuditEvent{
				Type:      "module",
				Timestamp: event.Timestamp,
				Action:    event.Name,
				Status:    "success",
				EventID:   event.ID,
			}
			if event.Name == events.ModuleLoadFailed {
				entry.Status = "failure"
			}
			if payload, ok := event.Payload.(events.ModulePayload); ok {
				entry.Subject = payload.ModuleID
				entry.Metadata = auditMetadata(payload)
			}
			audit.Record(entry)
			return nil
		})
	}
}

func auditMetadata(payload events.ModulePayload) map[string]any {
	metadata := make(map[string]any)
	if payload.Reason != "" {
		metadata["reason"] = payload.Reason
	}
	if payload.From != "" {
		metadata["from"] = payload.From
	}
	if payload.To != "" {
		metadata["to"] = payload.To
	}
	if len(payload.Dependents) > 0 {
		metadata["dependents"] = payload.Dependents
	}
	return metadata
}

func hookEntries(entries []config.HookConfig) []hooks.Hook {
	result := make([]hooks.Hook, 0, len(entries))
	for _, entry := range entries {
		result = append(result, hooks.Hook{
			ID:      entry.ID,
			Event:   entry.Event,
			Script:  entry.Script,
			Timeout: time.Duration(entry.TimeoutSeconds) * time.Second,
			Enabled: entry.Enabled,
		})
	}
	return result
}

// Bus returns the event bus
func (c *Cortex) Bus() *events.Bus { return c.bus }

// Registry returns the module registry
func (c *Cortex) Registry() *module.Registry { return c.registry }

// Loader returns the module loader
func (c *Cortex) Loader() *loader.Loader { return c.loader }

// Store returns the tiered store
func (c *Cortex) Store() *storage.TieredStore { return c.store }

// DefaultPriority returns the configured priority for loads that name none
func (c *Cortex) DefaultPriority() loader.Priority { return c.defaultPriority }

// Discover scans the configured module directories and registers every
// manifest not yet in the registry. Registration errors do not stop the
// scan; they are returned together.
func (c *Cortex) Discover() ([]string, error) {
	found, err := c.discovery.Discover(c.config.Modules.Dirs...)
	if err != nil {
		return nil, err
	}

	fresh := found[:0]
	for _, manifest := range found {
		if !c.registry.Has(manifest.ID) {
			fresh = append(fresh, manifest)
		}
	}

	ids, errs := c.registry.RegisterDiscovered(fresh)
	c.loader.SyncTiers()

	c.logger.Info().
		Int("found", len(found)).
		Int("registered", len(ids)).
		Int("failed", len(errs)).
		Msg("Module discovery completed")
	return ids, errors.Join(errs...)
}

// Start launches the maintenance schedule and, when enabled, a watcher on
// each module directory
func (c *Cortex) Start() error {
	if c.maintenance != nil {
		c.maintenance.Start()
	}

	if !c.config.Modules.Watch {
		return nil
	}
	for _, dir := range c.config.Modules.Dirs {
		watcher, err := module.NewWatcher(c.logger, module.WatcherConfig{
			Dir:                dir,
			StabilityThreshold: time.Duration(c.config.Modules.StabilityThresholdMs) * time.Millisecond,
			OnManifest:         c.handleManifest,
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		c.watchers = append(c.watchers, watcher)
	}
	return nil
}

// handleManifest registers a manifest that appeared or changed on disk. A
// changed manifest replaces the catalog entry only while the module is not
// loaded and nothing depends on it; see Loader.Replace.
func (c *Cortex) handleManifest(path string) error {
	manifest, err := c.manifests.LoadManifest(path)
	if err != nil {
		return err
	}

	if c.registry.Has(manifest.ID) {
		if err := c.loader.Replace(manifest); err != nil {
			return fmt.Errorf("failed to replace %s: %w", manifest.ID, err)
		}
		c.logger.Info().Str("module", manifest.ID).Str("path", path).Msg("Module manifest replaced")
		return nil
	}

	if _, err := c.registry.Register(manifest); err != nil {
		return err
	}
	c.logger.Info().Str("module", manifest.ID).Str("path", path).Msg("Module manifest registered")
	return nil
}

// Close stops background jobs, demotes loaded modules to the warm tier so
// their content survives the process, drains hooks and closes storage
func (c *Cortex) Close() error {
	var errs []error
	for _, watcher := range c.watchers {
		if err := watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	c.watchers = nil

	if c.maintenance != nil {
		c.maintenance.Stop()
	}

	loaded := c.loader.GetLoadedModules()
	for i := len(loaded) - 1; i >= 0; i-- {
		if err := c.loader.Unload(loaded[i], true); err != nil {
			errs = append(errs, err)
		}
	}
	c.hooks.Close()
	if c.audit != nil {
		if err := c.audit.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
