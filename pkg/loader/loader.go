package loader

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/pkg/events"
	"github.com/harun/cortex/pkg/module"
	"github.com/harun/cortex/pkg/storage"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Config holds optional loader collaborators
type Config struct {
	// Policy selects eviction victims. Defaults to LRUPolicy.
	Policy EvictionPolicy

	// Source produces content for modules no tier holds. Defaults to FileSource.
	Source ContentSource

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// LoadResult describes the outcome of a Load call. It is returned on
// failure too: Loaded then lists the dependencies that stayed loaded.
type LoadResult struct {
	RequestID     string
	ModuleID      string
	AlreadyLoaded bool
	Loaded        []string
	Evicted       []string
}

// LoadedModule describes a module in the loaded set
type LoadedModule struct {
	ID         string    `json:"id"`
	SizeTokens int       `json:"size_tokens"`
	Priority   Priority  `json:"priority"`
	LoadedAt   time.Time `json:"loaded_at"`
	LastUsed   time.Time `json:"last_used"`
	UsageCount int       `json:"usage_count"`
}

// MemoryUsage reports hot tier accounting
type MemoryUsage struct {
	Used       int            `json:"used"`
	Limit      int            `json:"limit"`
	Free       int            `json:"free"`
	Percentage float64        `json:"percentage"`
	Modules    []LoadedModule `json:"modules"`
}

// OptimizeResult reports what Optimize unloaded
type OptimizeResult struct {
	FreedTokens int      `json:"freed_tokens"`
	Unloaded    []string `json:"unloaded"`
}

// ArchiveResult reports what Archive moved to the cold tier
type ArchiveResult struct {
	Archived []string `json:"archived"`
}

type loadedEntry struct {
	priority Priority
	loadedAt time.Time
}

// pendingEvent is an event produced under the loader lock and emitted
// after it is released
type pendingEvent struct {
	name    string
	payload events.ModulePayload
}

// Loader moves modules in and out of the hot tier within the token
// budget. Every operation that touches hot tier accounting runs under
// one mutex.
type Loader struct {
	logger   zerolog.Logger
	registry *module.Registry
	store    *storage.TieredStore
	bus      *events.Bus
	policy   EvictionPolicy
	source   ContentSource
	now      func() time.Time

	mu       sync.Mutex
	loaded   map[string]loadedEntry
	order    []string
	dangling map[string][]string
}

// New creates a loader. bus may be nil.
func New(logger zerolog.Logger, registry *module.Registry, store *storage.TieredStore, bus *events.Bus, cfg Config) *Loader {
	observability.EnsureRegistered()

	if cfg.Policy == nil {
		cfg.Policy = LRUPolicy{}
	}
	if cfg.Source == nil {
		cfg.Source = FileSource{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	l := &Loader{
		logger:   logger.With().Str("component", "module-loader").Logger(),
		registry: registry,
		store:    store,
		bus:      bus,
		policy:   cfg.Policy,
		source:   cfg.Source,
		now:      cfg.Clock,
		loaded:   make(map[string]loadedEntry),
		dangling: make(map[string][]string),
	}
	observability.SetHotTokens(store.Hot().Used(), store.Hot().Capacity())
	return l
}

// Policy returns the eviction policy name
func (l *Loader) Policy() string {
	return l.policy.Name()
}

// Load brings id and its dependencies into the hot tier, dependencies
// first. Loading a module that is already loaded succeeds without
// changing the loaded set. Dependencies loaded before a failure stay
// loaded.
func (l *Loader) Load(id string, priority Priority) (*LoadResult, error) {
	start := time.Now()
	requestID, _ := gonanoid.New()
	result := &LoadResult{RequestID: requestID, ModuleID: id}
	logger := l.logger.With().Str("request_id", requestID).Str("module", id).Logger()

	l.mu.Lock()
	queue, err := l.loadLocked(id, priority, result)
	l.updateGaugesLocked()
	l.mu.Unlock()

	if err != nil {
		queue = append(queue, pendingEvent{
			name:    events.ModuleLoadFailed,
			payload: events.ModulePayload{ModuleID: id, Reason: err.Error()},
		})
	}
	l.flush(queue)

	switch {
	case err != nil:
		observability.RecordModuleLoad(time.Since(start), "failed")
		logger.Warn().
			Err(err).
			Strs("loaded", result.Loaded).
			Strs("evicted", result.Evicted).
			Msg("Module load failed")
		return result, err
	case result.AlreadyLoaded:
		observability.RecordModuleLoad(time.Since(start), "already_loaded")
		logger.Debug().Msg("Module already loaded")
	default:
		observability.RecordModuleLoad(time.Since(start), "success")
		logger.Info().
			Strs("loaded", result.Loaded).
			Strs("evicted", result.Evicted).
			Str("priority", priority.String()).
			Dur("duration", time.Since(start)).
			Msg("Module loaded")
	}
	return result, nil
}

func (l *Loader) loadLocked(id string, priority Priority, result *LoadResult) ([]pendingEvent, error) {
	var queue []pendingEvent

	deps, err := l.registry.GetDependencies(id)
	if err != nil {
		return queue, err
	}

	if entry, ok := l.loaded[id]; ok {
		if priority > entry.priority {
			entry.priority = priority
			l.loaded[id] = entry
		}
		if err := l.registry.RecordUsage(id, l.now()); err != nil {
			return queue, err
		}
		result.AlreadyLoaded = true
		return queue, nil
	}

	chain := append(deps, id)
	inChain := make(map[string]bool, len(chain))
	for _, memberID := range chain {
		inChain[memberID] = true
	}

	if err := l.precheckLocked(chain); err != nil {
		return queue, err
	}

	for _, memberID := range chain {
		if _, ok := l.loaded[memberID]; ok {
			continue
		}
		if err := l.loadOneLocked(memberID, priority, inChain, result, &queue); err != nil {
			return queue, err
		}
	}
	return queue, nil
}

// precheckLocked rejects loads that cannot succeed before anything is
// mutated: conflicts with the loaded set, and chains that could never fit
// the budget since their members cannot evict each other.
func (l *Loader) precheckLocked(chain []string) error {
	capacity := l.store.Hot().Capacity()
	need := 0

	for _, memberID := range chain {
		if _, ok := l.loaded[memberID]; ok {
			continue
		}
		record, err := l.registry.Get(memberID)
		if err != nil {
			return err
		}
		if err := l.checkConflictsLocked(memberID); err != nil {
			return err
		}
		need += record.SizeTokens
	}

	if need > capacity {
		return fmt.Errorf("%w: dependency chain needs %d tokens, budget is %d", ErrInsufficientMemory, need, capacity)
	}
	return nil
}

func (l *Loader) checkConflictsLocked(id string) error {
	reports, err := l.registry.CheckConflicts(id)
	if err != nil {
		return err
	}
	if len(reports) > 0 {
		return &module.ConflictError{ModuleID: id, Conflicts: reports}
	}
	return nil
}

func (l *Loader) loadOneLocked(id string, priority Priority, inChain map[string]bool, result *LoadResult, queue *[]pendingEvent) error {
	record, err := l.registry.Get(id)
	if err != nil {
		return err
	}
	// Earlier members of the chain may have introduced a conflict.
	if err := l.checkConflictsLocked(id); err != nil {
		return err
	}

	if err := l.registry.SetState(id, module.StatusLoading, record.Tier); err != nil {
		return err
	}
	if err := l.promoteLocked(record, priority, inChain, result, queue); err != nil {
		l.resetStateLocked(id)
		return fmt.Errorf("failed to load %s: %w", id, err)
	}

	now := l.now()
	if err := l.registry.SetState(id, module.StatusLoaded, module.TierHot); err != nil {
		return err
	}
	if err := l.registry.RecordUsage(id, now); err != nil {
		return err
	}

	l.loaded[id] = loadedEntry{priority: priority, loadedAt: now}
	l.order = append(l.order, id)
	l.clearDanglingLocked(id)
	result.Loaded = append(result.Loaded, id)
	*queue = append(*queue, pendingEvent{
		name:    events.ModuleLoaded,
		payload: events.ModulePayload{ModuleID: id},
	})
	return nil
}

// promoteLocked makes room and moves the content of record into the hot
// tier, seeding the cold tier first when no tier holds it.
func (l *Loader) promoteLocked(record module.ModuleRecord, priority Priority, inChain map[string]bool, result *LoadResult, queue *[]pendingEvent) error {
	hot := l.store.Hot()

	source, err := l.store.Locate(record.ID)
	if err != nil {
		return err
	}
	if source == storage.Tier(hot) {
		return nil
	}
	if source == nil {
		content, err := l.source.Content(record)
		if err != nil {
			return err
		}
		if err := l.store.Seed(record.ID, storage.Blob{Data: content, SizeTokens: record.SizeTokens}); err != nil {
			return err
		}
		source = l.store.Cold()
	}

	if err := l.ensureSpaceLocked(record.SizeTokens, priority, inChain, result, queue); err != nil {
		return err
	}

	if _, err := l.store.Move(record.ID, source, hot); err != nil {
		return err
	}
	*queue = append(*queue, pendingEvent{
		name:    events.ModulePromoted,
		payload: events.ModulePayload{ModuleID: record.ID, From: source.Name(), To: hot.Name()},
	})
	return nil
}

// ensureSpaceLocked evicts until need tokens are free. The victims are
// planned first so that a load that cannot fit evicts nothing.
func (l *Loader) ensureSpaceLocked(need int, priority Priority, inChain map[string]bool, result *LoadResult, queue *[]pendingEvent) error {
	free := l.store.Hot().Free()
	if free >= need {
		return nil
	}

	plan, ok := l.planEvictionsLocked(need-free, priority, inChain)
	if !ok {
		return fmt.Errorf("%w: need %d tokens, %d free and not enough evictable modules", ErrInsufficientMemory, need, free)
	}

	for _, victim := range plan {
		if err := l.evictLocked(victim, queue); err != nil {
			return err
		}
		result.Evicted = append(result.Evicted, victim)
	}
	return nil
}

func (l *Loader) planEvictionsLocked(shortfall int, priority Priority, inChain map[string]bool) ([]string, bool) {
	removed := make(map[string]bool)
	var plan []string

	for freed := 0; freed < shortfall; {
		candidates := l.candidatesLocked(priority, inChain, removed)
		victim, ok := l.policy.SelectVictim(candidates)
		if !ok {
			return nil, false
		}
		for _, c := range candidates {
			if c.ModuleID == victim {
				freed += c.SizeTokens
				break
			}
		}
		removed[victim] = true
		plan = append(plan, victim)
	}
	return plan, true
}

// candidatesLocked lists loaded modules that may be evicted: not part of
// the current chain, not loaded at a higher priority than the request,
// and not required by another loaded module.
func (l *Loader) candidatesLocked(priority Priority, inChain, removed map[string]bool) []Candidate {
	records := make(map[string]module.ModuleRecord, len(l.order))
	required := make(map[string]bool)
	for _, id := range l.order {
		if removed[id] {
			continue
		}
		record, err := l.registry.Get(id)
		if err != nil {
			continue
		}
		records[id] = record
		for _, dep := range record.Dependencies {
			required[dep] = true
		}
	}

	var candidates []Candidate
	for _, id := range l.order {
		record, ok := records[id]
		if !ok || inChain[id] || required[id] {
			continue
		}
		entry := l.loaded[id]
		// strictly higher only; see Priority
		if entry.priority > priority {
			continue
		}
		candidates = append(candidates, Candidate{
			ModuleID:   id,
			SizeTokens: record.SizeTokens,
			LastUsed:   record.LastUsed,
			UsageCount: record.UsageCount,
			Priority:   entry.priority,
			Seq:        record.Seq(),
		})
	}
	return candidates
}

func (l *Loader) evictLocked(id string, queue *[]pendingEvent) error {
	if _, err := l.store.Move(id, l.store.Hot(), l.store.Warm()); err != nil {
		return fmt.Errorf("failed to evict %s: %w", id, err)
	}
	l.removeLoadedLocked(id)
	if err := l.registry.SetState(id, module.StatusAvailable, module.TierWarm); err != nil {
		return err
	}

	observability.RecordEviction()
	*queue = append(*queue, pendingEvent{
		name: events.ModuleEvicted,
		payload: events.ModulePayload{
			ModuleID: id,
			Reason:   "memory_pressure",
			From:     storage.NameHot,
			To:       storage.NameWarm,
		},
	})
	l.logger.Info().Str("module", id).Str("policy", l.policy.Name()).Msg("Module evicted")
	return nil
}

// Unload demotes id from the hot tier to the warm tier. Without force it
// refuses while other loaded modules depend on id; with force those
// dependents stay loaded and are reported by DanglingDependencies.
func (l *Loader) Unload(id string, force bool) error {
	l.mu.Lock()
	queue, err := l.unloadLocked(id, force, "requested")
	l.updateGaugesLocked()
	l.mu.Unlock()

	l.flush(queue)
	if err != nil {
		return err
	}

	observability.RecordModuleUnload(force)
	l.logger.Info().Str("module", id).Bool("force", force).Msg("Module unloaded")
	return nil
}

func (l *Loader) unloadLocked(id string, force bool, reason string) ([]pendingEvent, error) {
	if _, ok := l.loaded[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}

	dependents := l.loadedDependentsLocked(id)
	if len(dependents) > 0 && !force {
		return nil, &HasDependentsError{ModuleID: id, Dependents: dependents}
	}

	if _, err := l.store.Move(id, l.store.Hot(), l.store.Warm()); err != nil {
		return nil, fmt.Errorf("failed to unload %s: %w", id, err)
	}
	l.removeLoadedLocked(id)
	if err := l.registry.SetState(id, module.StatusAvailable, module.TierWarm); err != nil {
		return nil, err
	}

	for _, dependent := range dependents {
		l.dangling[dependent] = appendUnique(l.dangling[dependent], id)
	}
	if force && len(dependents) > 0 {
		reason = "forced"
		l.logger.Warn().
			Str("module", id).
			Strs("dependents", dependents).
			Msg("Forced unload left dependents without a loaded dependency")
	}

	return []pendingEvent{{
		name: events.ModuleUnloaded,
		payload: events.ModulePayload{
			ModuleID:   id,
			Reason:     reason,
			From:       storage.NameHot,
			To:         storage.NameWarm,
			Dependents: dependents,
		},
	}}, nil
}

func (l *Loader) loadedDependentsLocked(id string) []string {
	var dependents []string
	for _, loadedID := range l.order {
		record, err := l.registry.Get(loadedID)
		if err != nil {
			continue
		}
		for _, dep := range record.Dependencies {
			if dep == id {
				dependents = append(dependents, loadedID)
				break
			}
		}
	}
	return dependents
}

func (l *Loader) removeLoadedLocked(id string) {
	delete(l.loaded, id)
	delete(l.dangling, id)
	for i, loadedID := range l.order {
		if loadedID == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Loader) clearDanglingLocked(loadedID string) {
	for dependent, missing := range l.dangling {
		kept := missing[:0]
		for _, dep := range missing {
			if dep != loadedID {
				kept = append(kept, dep)
			}
		}
		if len(kept) == 0 {
			delete(l.dangling, dependent)
		} else {
			l.dangling[dependent] = kept
		}
	}
}

// resetStateLocked returns a module whose load failed to available,
// reflecting whichever tier now holds its content
func (l *Loader) resetStateLocked(id string) {
	tier, err := l.tierOf(id)
	if err != nil {
		l.logger.Warn().Err(err).Str("module", id).Msg("Failed to locate module content")
		record, getErr := l.registry.Get(id)
		if getErr != nil {
			return
		}
		tier = record.Tier
	}
	if err := l.registry.SetState(id, module.StatusAvailable, tier); err != nil {
		l.logger.Error().Err(err).Str("module", id).Msg("Failed to reset module state")
	}
}

func (l *Loader) tierOf(id string) (module.Tier, error) {
	tier, err := l.store.Locate(id)
	if err != nil {
		return "", err
	}
	if tier == nil {
		return module.TierNone, nil
	}
	return module.Tier(tier.Name()), nil
}

// SyncTiers records in the registry which tier holds each module's
// content, as found in persisted warm and cold storage
func (l *Loader) SyncTiers() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, record := range l.registry.List(module.Filter{}) {
		if record.Status == module.StatusLoaded {
			continue
		}
		tier, err := l.tierOf(record.ID)
		if err != nil {
			l.logger.Warn().Err(err).Str("module", record.ID).Msg("Failed to sync tier")
			continue
		}
		if tier != record.Tier {
			if err := l.registry.SetTier(record.ID, tier); err != nil {
				l.logger.Warn().Err(err).Str("module", record.ID).Msg("Failed to sync tier")
			}
		}
	}
}

// Replace swaps the catalog entry of an idle module for manifest, then
// drops the module's warm and cold content so the next load reads the new
// files. When the registry rejects the manifest nothing changes. Replace
// is serialized with Load and Unload.
func (l *Loader) Replace(manifest *module.Manifest) error {
	if manifest == nil {
		return fmt.Errorf("%w: nil manifest", module.ErrInvalidManifest)
	}
	id := manifest.ID

	l.mu.Lock()
	if _, ok := l.loaded[id]; ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s is loaded", module.ErrModuleInUse, id)
	}

	if _, err := l.registry.Replace(manifest); err != nil {
		l.mu.Unlock()
		return err
	}

	var errs []error
	for _, tier := range []storage.Tier{l.store.Warm(), l.store.Cold()} {
		if _, err := tier.Remove(id); err != nil {
			errs = append(errs, fmt.Errorf("failed to drop %s content of %s: %w", tier.Name(), id, err))
		}
	}
	l.resetStateLocked(id)
	l.mu.Unlock()

	l.flush([]pendingEvent{{
		name:    events.ModuleRegistered,
		payload: events.ModulePayload{ModuleID: id, Reason: "replaced"},
	}})
	return errors.Join(errs...)
}

// IsLoaded reports whether id is in the loaded set
func (l *Loader) IsLoaded(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loaded[id]
	return ok
}

// GetLoadedModules returns the loaded ids in load order
func (l *Loader) GetLoadedModules() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

// GetMemoryUsage reports hot tier usage and the loaded modules
func (l *Loader) GetMemoryUsage() MemoryUsage {
	l.mu.Lock()
	defer l.mu.Unlock()

	hot := l.store.Hot()
	usage := MemoryUsage{
		Used:    hot.Used(),
		Limit:   hot.Capacity(),
		Free:    hot.Free(),
		Modules: make([]LoadedModule, 0, len(l.order)),
	}
	if usage.Limit > 0 {
		usage.Percentage = float64(usage.Used) / float64(usage.Limit) * 100
	}

	for _, id := range l.order {
		record, err := l.registry.Get(id)
		if err != nil {
			continue
		}
		entry := l.loaded[id]
		usage.Modules = append(usage.Modules, LoadedModule{
			ID:         id,
			SizeTokens: record.SizeTokens,
			Priority:   entry.priority,
			LoadedAt:   entry.loadedAt,
			LastUsed:   record.LastUsed,
			UsageCount: record.UsageCount,
		})
	}
	return usage
}

// DanglingDependencies maps each loaded module to the dependencies that a
// forced unload removed from under it
func (l *Loader) DanglingDependencies() map[string][]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make(map[string][]string, len(l.dangling))
	for dependent, missing := range l.dangling {
		result[dependent] = append([]string(nil), missing...)
	}
	return result
}

func (l *Loader) updateGaugesLocked() {
	observability.SetHotTokens(l.store.Hot().Used(), l.store.Hot().Capacity())
	observability.SetLoadedModules(len(l.loaded))
}

// flush emits queued events. It must be called without holding l.mu so
// that handlers may call back into the loader.
func (l *Loader) flush(queue []pendingEvent) {
	if l.bus == nil {
		return
	}
	for _, event := range queue {
		l.bus.Emit(event.name, event.payload)
	}
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
