package loader

import (
	"errors"
	"fmt"
	"time"

	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/pkg/events"
	"github.com/harun/cortex/pkg/module"
	"github.com/harun/cortex/pkg/storage"
)

// Optimize unloads loaded modules that have not been used for longer than
// idle and that no loaded module depends on. Dependencies of an unloaded
// module become candidates in the same call.
func (l *Loader) Optimize(idle time.Duration) (*OptimizeResult, error) {
	l.mu.Lock()
	cutoff := l.now().Add(-idle)
	result := &OptimizeResult{}
	var (
		queue  []pendingEvent
		errs   []error
		failed = make(map[string]bool)
	)

	for progressed := true; progressed; {
		progressed = false
		for _, id := range append([]string(nil), l.order...) {
			record, err := l.registry.Get(id)
			if err != nil || failed[id] || record.LastUsed.After(cutoff) {
				continue
			}
			if len(l.loadedDependentsLocked(id)) > 0 {
				continue
			}

			unloaded, err := l.unloadLocked(id, false, "idle")
			if err != nil {
				failed[id] = true
				errs = append(errs, err)
				continue
			}
			queue = append(queue, unloaded...)
			result.Unloaded = append(result.Unloaded, id)
			result.FreedTokens += record.SizeTokens
			progressed = true
		}
	}

	l.updateGaugesLocked()
	l.mu.Unlock()

	l.flush(queue)
	for range result.Unloaded {
		observability.RecordModuleUnload(false)
	}

	if len(result.Unloaded) > 0 {
		l.logger.Info().
			Strs("unloaded", result.Unloaded).
			Int("freed_tokens", result.FreedTokens).
			Msg("Optimized hot tier")
	}
	return result, errors.Join(errs...)
}

// Archive moves warm content of modules idle for longer than idle to the
// cold tier. Loaded modules and content of unknown modules are left alone.
func (l *Loader) Archive(idle time.Duration) (*ArchiveResult, error) {
	l.mu.Lock()
	cutoff := l.now().Add(-idle)
	result := &ArchiveResult{}
	var (
		queue []pendingEvent
		errs  []error
	)

	warm, cold := l.store.Warm(), l.store.Cold()
	ids, err := warm.IDs()
	if err != nil {
		l.mu.Unlock()
		return result, fmt.Errorf("failed to list warm tier: %w", err)
	}

	for _, id := range ids {
		record, err := l.registry.Get(id)
		if err != nil || record.Status != module.StatusAvailable || record.LastUsed.After(cutoff) {
			continue
		}

		if _, err := l.store.Move(id, warm, cold); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := l.registry.SetTier(id, module.TierCold); err != nil {
			errs = append(errs, err)
			continue
		}

		result.Archived = append(result.Archived, id)
		queue = append(queue, pendingEvent{
			name: events.ModuleDemoted,
			payload: events.ModulePayload{
				ModuleID: id,
				Reason:   "idle",
				From:     storage.NameWarm,
				To:       storage.NameCold,
			},
		})
	}
	l.mu.Unlock()

	l.flush(queue)
	if len(result.Archived) > 0 {
		l.logger.Info().Strs("archived", result.Archived).Msg("Archived idle modules")
	}
	return result, errors.Join(errs...)
}
