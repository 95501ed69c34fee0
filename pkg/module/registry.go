package module

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/pkg/events"
	"github.com/rs/zerolog"
)

// Registry is the catalog of known modules
type Registry struct {
	logger zerolog.Logger
	bus    *events.Bus

	mu      sync.RWMutex
	records map[string]*ModuleRecord
	order   []string
	seq     uint64
}

// NewRegistry creates an empty registry. bus may be nil.
func NewRegistry(logger zerolog.Logger, bus *events.Bus) *Registry {
	return &Registry{
		logger:  logger.With().Str("component", "module-registry").Logger(),
		bus:     bus,
		records: make(map[string]*ModuleRecord),
	}
}

// Register catalogs a single manifest. Every dependency must already be
// registered.
func (r *Registry) Register(manifest *Manifest) (string, error) {
	ids, err := r.RegisterAll([]*Manifest{manifest})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// RegisterAll catalogs a batch atomically: either every manifest is
// inserted or none is. Dependencies may point at catalogued modules or at
// other members of the batch.
func (r *Registry) RegisterAll(manifests []*Manifest) ([]string, error) {
	batch := make(map[string]*ModuleRecord, len(manifests))
	ids := make([]string, 0, len(manifests))

	for _, manifest := range manifests {
		if manifest == nil {
			return nil, fmt.Errorf("%w: nil manifest", ErrInvalidManifest)
		}
		if err := ValidateManifest(manifest); err != nil {
			return nil, err
		}
		record, err := newRecord(manifest)
		if err != nil {
			return nil, err
		}
		if _, dup := batch[record.ID]; dup {
			return nil, fmt.Errorf("%w: %s appears twice in batch", ErrAlreadyExists, record.ID)
		}
		batch[record.ID] = record
		ids = append(ids, record.ID)
	}

	r.mu.Lock()

	for _, id := range ids {
		if _, exists := r.records[id]; exists {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		}
	}

	for _, id := range ids {
		err := checkDependencies(batch[id], func(depID string) (*ModuleRecord, bool) {
			if dep, ok := batch[depID]; ok {
				return dep, true
			}
			dep, ok := r.records[depID]
			return dep, ok
		})
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
	}

	now := time.Now()
	for _, id := range ids {
		record := batch[id]
		r.seq++
		record.seq = r.seq
		record.RegisteredAt = now
		r.records[id] = record
		r.order = append(r.order, id)
	}
	count := len(r.records)
	r.mu.Unlock()

	observability.SetRegisteredModules(count)
	for _, id := range ids {
		r.logger.Info().
			Str("module", id).
			Str("version", batch[id].Version).
			Int("size_tokens", batch[id].SizeTokens).
			Msg("Module registered")
		if r.bus != nil {
			r.bus.Emit(events.ModuleRegistered, events.ModulePayload{ModuleID: id})
		}
	}

	return ids, nil
}

// checkDependencies verifies that every dependency of record resolves
// through lookup and satisfies its version constraint
func checkDependencies(record *ModuleRecord, lookup func(string) (*ModuleRecord, bool)) error {
	for _, depID := range record.Dependencies {
		dep, ok := lookup(depID)
		if !ok {
			return fmt.Errorf("%w: %s requires missing dependency %s", ErrModuleNotFound, record.ID, depID)
		}

		constraint := record.DependencyConstraints[depID]
		compatible, err := VersionCompatible(dep.Version, constraint)
		if err != nil {
			return fmt.Errorf("%s: %w", record.ID, err)
		}
		if !compatible {
			return fmt.Errorf("%w: %s requires %s%s, found %s", ErrVersionConflict, record.ID, depID, constraint, dep.Version)
		}
	}
	return nil
}

// Replace swaps the record of a catalogued module for one built from
// manifest and returns the previous record. The catalog is unchanged when
// the manifest is invalid, its dependencies do not resolve, or the module
// is not available or is depended on. Usage statistics and catalog
// position carry over. No event is emitted; the caller owns that.
func (r *Registry) Replace(manifest *Manifest) (ModuleRecord, error) {
	if manifest == nil {
		return ModuleRecord{}, fmt.Errorf("%w: nil manifest", ErrInvalidManifest)
	}
	if err := ValidateManifest(manifest); err != nil {
		return ModuleRecord{}, err
	}
	record, err := newRecord(manifest)
	if err != nil {
		return ModuleRecord{}, err
	}
	id := record.ID

	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.records[id]
	if !ok {
		return ModuleRecord{}, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	if old.Status != StatusAvailable {
		return ModuleRecord{}, fmt.Errorf("%w: %s is %s", ErrModuleInUse, id, old.Status)
	}
	if dependents := r.dependentsLocked(id); len(dependents) > 0 {
		return ModuleRecord{}, fmt.Errorf("%w: %s is required by %s", ErrModuleInUse, id, strings.Join(dependents, ", "))
	}

	err = checkDependencies(record, func(depID string) (*ModuleRecord, bool) {
		dep, ok := r.records[depID]
		return dep, ok
	})
	if err != nil {
		return ModuleRecord{}, err
	}

	record.seq = old.seq
	record.RegisteredAt = old.RegisteredAt
	record.UsageCount = old.UsageCount
	record.LastUsed = old.LastUsed
	record.Tier = old.Tier
	r.records[id] = record

	r.logger.Info().
		Str("module", id).
		Str("old_version", old.Version).
		Str("version", record.Version).
		Msg("Module replaced")
	return old.clone(), nil
}

// Deregister removes a module from the catalog. Loaded modules and
// modules other records depend on are refused.
func (r *Registry) Deregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	if record.Status != StatusAvailable {
		return fmt.Errorf("%w: %s is %s", ErrModuleInUse, id, record.Status)
	}
	if dependents := r.dependentsLocked(id); len(dependents) > 0 {
		return fmt.Errorf("%w: %s is required by %s", ErrModuleInUse, id, strings.Join(dependents, ", "))
	}

	delete(r.records, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	observability.SetRegisteredModules(len(r.records))

	r.logger.Info().Str("module", id).Msg("Module deregistered")
	return nil
}

// Get returns a copy of the record for id
func (r *Registry) Get(id string) (ModuleRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return ModuleRecord{}, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	return record.clone(), nil
}

// Has reports whether id is catalogued
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[id]
	return ok
}

// Len returns the number of catalogued modules
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// List returns copies of the records matching filter in insertion order
func (r *Registry) List(filter Filter) []ModuleRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []ModuleRecord
	for _, id := range r.order {
		record := r.records[id]
		if filter.matches(record) {
			result = append(result, record.clone())
		}
	}
	return result
}

// FindByKeyword matches keyword case-insensitively against id, name and
// trigger keywords. Results keep insertion order.
func (r *Registry) FindByKeyword(keyword string) []ModuleRecord {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []ModuleRecord
	for _, id := range r.order {
		record := r.records[id]
		if matchesKeyword(record, needle) {
			result = append(result, record.clone())
		}
	}
	return result
}

func matchesKeyword(record *ModuleRecord, needle string) bool {
	if strings.Contains(strings.ToLower(record.ID), needle) {
		return true
	}
	if record.Name != "" && strings.Contains(strings.ToLower(record.Name), needle) {
		return true
	}
	for _, trigger := range record.Triggers {
		if strings.Contains(strings.ToLower(trigger), needle) {
			return true
		}
	}
	return false
}

// Dependents returns the ids of records that declare id as a dependency
func (r *Registry) Dependents(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dependentsLocked(id)
}

func (r *Registry) dependentsLocked(id string) []string {
	var dependents []string
	for _, otherID := range r.order {
		for _, depID := range r.records[otherID].Dependencies {
			if depID == id {
				dependents = append(dependents, otherID)
				break
			}
		}
	}
	return dependents
}

// update applies fn to the record for id under the write lock
func (r *Registry) update(id string, fn func(*ModuleRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	fn(record)
	return nil
}

// SetState updates status and tier of a module
func (r *Registry) SetState(id string, status ModuleStatus, tier Tier) error {
	return r.update(id, func(record *ModuleRecord) {
		record.Status = status
		record.Tier = tier
	})
}

// SetTier updates the tier of a module
func (r *Registry) SetTier(id string, tier Tier) error {
	return r.update(id, func(record *ModuleRecord) {
		record.Tier = tier
	})
}

// RecordUsage bumps the usage counter and last-used time of a module
func (r *Registry) RecordUsage(id string, at time.Time) error {
	return r.update(id, func(record *ModuleRecord) {
		record.UsageCount++
		record.LastUsed = at
	})
}

// Stats returns usage statistics of a module
func (r *Registry) Stats(id string) (ModuleStats, error) {
	record, err := r.Get(id)
	if err != nil {
		return ModuleStats{}, err
	}
	return ModuleStats{
		ModuleID:   record.ID,
		UsageCount: record.UsageCount,
		LastUsed:   record.LastUsed,
		Status:     record.Status,
		Tier:       record.Tier,
	}, nil
}
