package storage

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/harun/cortex/internal/observability"
	"github.com/rs/zerolog"
)

// TieredStore composes the hot, warm and cold tiers and moves content
// between them. It performs no locking of its own; the loader serializes
// every move.
type TieredStore struct {
	logger zerolog.Logger
	hot    *HotTier
	warm   Tier
	cold   Tier
}

// NewTieredStore creates a store over the given tiers
func NewTieredStore(logger zerolog.Logger, hot *HotTier, warm, cold Tier) *TieredStore {
	return &TieredStore{
		logger: logger.With().Str("component", "tiered-store").Logger(),
		hot:    hot,
		warm:   warm,
		cold:   cold,
	}
}

// Hot returns the hot tier
func (s *TieredStore) Hot() *HotTier { return s.hot }

// Warm returns the warm tier
func (s *TieredStore) Warm() Tier { return s.warm }

// Cold returns the cold tier
func (s *TieredStore) Cold() Tier { return s.cold }

// Tier returns the tier with the given name
func (s *TieredStore) Tier(name string) (Tier, bool) {
	switch name {
	case NameHot:
		return s.hot, true
	case NameWarm:
		return s.warm, true
	case NameCold:
		return s.cold, true
	default:
		return nil, false
	}
}

// Locate returns the fastest tier holding id, or nil when no tier does.
// A tier that cannot be queried fails the lookup rather than being
// skipped, so callers never seed content a slower tier may still hold.
func (s *TieredStore) Locate(id string) (Tier, error) {
	for _, tier := range []Tier{s.hot, s.warm, s.cold} {
		ok, err := tier.Has(id)
		if err != nil {
			return nil, fmt.Errorf("failed to locate %s: %w", id, err)
		}
		if ok {
			return tier, nil
		}
	}
	return nil, nil
}

// Seed stores content that exists in no tier yet into the cold tier
func (s *TieredStore) Seed(id string, blob Blob) error {
	stored, err := s.cold.Store(id, blob)
	if err != nil {
		return fmt.Errorf("failed to seed %s: %w", id, err)
	}
	if !stored {
		return fmt.Errorf("failed to seed %s: %w", id, ErrInsufficientMemory)
	}
	s.logger.Debug().Str("module", id).Int("bytes", len(blob.Data)).Msg("Seeded cold tier")
	return nil
}

// Move transfers id from one tier to another: retrieve, store into the
// destination, then remove from the source. When the destination refuses
// the blob the source is left untouched and ErrInsufficientMemory is
// returned. If removing from the source fails the destination copy is
// dropped again so that content lives in exactly one tier.
func (s *TieredStore) Move(id string, from, to Tier) (blob Blob, err error) {
	if from == to {
		return Blob{}, fmt.Errorf("%w: %s", ErrSameTier, from.Name())
	}

	start := time.Now()
	defer func() {
		observability.RecordTierMove(from.Name(), to.Name(), time.Since(start), err == nil)
	}()

	blob, ok, err := from.Retrieve(id)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to retrieve %s from %s: %w", id, from.Name(), err)
	}
	if !ok {
		return Blob{}, fmt.Errorf("%w: %s not in %s tier", ErrNotFound, id, from.Name())
	}

	stored, err := to.Store(id, blob)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to store %s in %s: %w", id, to.Name(), err)
	}
	if !stored {
		return Blob{}, fmt.Errorf("%w: %s tier cannot hold %s (%d tokens)", ErrInsufficientMemory, to.Name(), id, blob.SizeTokens)
	}

	if _, err := from.Remove(id); err != nil {
		if _, rollbackErr := to.Remove(id); rollbackErr != nil {
			s.logger.Error().Err(rollbackErr).Str("module", id).Str("tier", to.Name()).Msg("Failed to roll back move")
		}
		return Blob{}, fmt.Errorf("failed to remove %s from %s: %w", id, from.Name(), err)
	}

	s.logger.Debug().
		Str("module", id).
		Str("from", from.Name()).
		Str("to", to.Name()).
		Dur("duration", time.Since(start)).
		Msg("Moved blob")
	return blob, nil
}

// Close closes every tier that holds resources
func (s *TieredStore) Close() error {
	var errs []error
	for _, tier := range []Tier{s.warm, s.cold} {
		if closer, ok := tier.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close %s tier: %w", tier.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
