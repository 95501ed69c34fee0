package storage

import (
	"fmt"
	"sort"
	"sync"
)

// HotTier is the in-memory working set bounded by a token capacity.
// Blobs are kept uncompressed and are not copied; callers must not
// mutate Data after storing or retrieving it.
type HotTier struct {
	mu        sync.RWMutex
	maxTokens int
	used      int
	blobs     map[string]Blob
}

// NewHotTier creates a hot tier holding at most maxTokens tokens
func NewHotTier(maxTokens int) *HotTier {
	return &HotTier{
		maxTokens: maxTokens,
		blobs:     make(map[string]Blob),
	}
}

func (h *HotTier) Name() string { return NameHot }

// Store keeps blob if it fits. Replacing an existing id only accounts for
// the size difference.
func (h *HotTier) Store(id string, blob Blob) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	if blob.SizeTokens < 0 {
		return false, fmt.Errorf("negative size for %s: %d", id, blob.SizeTokens)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	used := h.used
	if existing, ok := h.blobs[id]; ok {
		used -= existing.SizeTokens
	}
	if used+blob.SizeTokens > h.maxTokens {
		return false, nil
	}

	blob.Compressed = false
	h.blobs[id] = blob
	h.used = used + blob.SizeTokens
	return true, nil
}

func (h *HotTier) Retrieve(id string) (Blob, bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	blob, ok := h.blobs[id]
	return blob, ok, nil
}

func (h *HotTier) Remove(id string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	blob, ok := h.blobs[id]
	if !ok {
		return false, nil
	}
	delete(h.blobs, id)
	h.used -= blob.SizeTokens
	return true, nil
}

func (h *HotTier) Has(id string) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.blobs[id]
	return ok, nil
}

func (h *HotTier) IDs() ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.blobs))
	for id := range h.blobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Used returns the tokens currently held
func (h *HotTier) Used() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.used
}

// Free returns the remaining token capacity
func (h *HotTier) Free() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.maxTokens - h.used
}

// Capacity returns the token capacity
func (h *HotTier) Capacity() int {
	return h.maxTokens
}
