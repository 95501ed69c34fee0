package loader

import (
	"fmt"
	"time"
)

// Candidate is a loaded module eligible for eviction
type Candidate struct {
	ModuleID   string
	SizeTokens int
	LastUsed   time.Time
	UsageCount int
	Priority   Priority
	// Seq is the registration order; lower registered earlier
	Seq uint64
}

// EvictionPolicy picks the next module to evict
type EvictionPolicy interface {
	Name() string
	// SelectVictim returns the id to evict, or false when candidates is empty
	SelectVictim(candidates []Candidate) (string, bool)
}

// NewEvictionPolicy returns the policy registered under name
func NewEvictionPolicy(name string) (EvictionPolicy, error) {
	switch name {
	case "", "lru":
		return LRUPolicy{}, nil
	case "lfu":
		return LFUPolicy{}, nil
	case "priority":
		return PriorityPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown eviction policy: %q", name)
	}
}

// LRUPolicy evicts the least recently used module. Ties go to the lowest
// usage count, then to the earliest registered module.
type LRUPolicy struct{}

func (LRUPolicy) Name() string { return "lru" }

func (LRUPolicy) SelectVictim(candidates []Candidate) (string, bool) {
	return selectMin(candidates, lruLess)
}

// LFUPolicy evicts the least frequently used module, falling back to LRU
// order on ties.
type LFUPolicy struct{}

func (LFUPolicy) Name() string { return "lfu" }

func (LFUPolicy) SelectVictim(candidates []Candidate) (string, bool) {
	return selectMin(candidates, func(a, b Candidate) bool {
		if a.UsageCount != b.UsageCount {
			return a.UsageCount < b.UsageCount
		}
		return lruLess(a, b)
	})
}

// PriorityPolicy evicts modules loaded at the lowest priority first,
// falling back to LRU order on ties.
type PriorityPolicy struct{}

func (PriorityPolicy) Name() string { return "priority" }

func (PriorityPolicy) SelectVictim(candidates []Candidate) (string, bool) {
	return selectMin(candidates, func(a, b Candidate) bool {
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return lruLess(a, b)
	})
}

func lruLess(a, b Candidate) bool {
	if !a.LastUsed.Equal(b.LastUsed) {
		return a.LastUsed.Before(b.LastUsed)
	}
	if a.UsageCount != b.UsageCount {
		return a.UsageCount < b.UsageCount
	}
	return a.Seq < b.Seq
}

func selectMin(candidates []Candidate, less func(a, b Candidate) bool) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if less(c, best) {
			best = c
		}
	}
	return best.ModuleID, true
}
