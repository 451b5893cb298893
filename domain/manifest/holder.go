package manifest

import "sync"

// Holder provides thread-safe access to the current manifest with atomic
// whole-manifest replacement, used when the manifest is refreshed.
type Holder struct {
	mu sync.RWMutex
	m  *Manifest
}

// NewHolder creates a holder with an initial manifest.
func NewHolder(m *Manifest) *Holder {
	return &Holder{m: m}
}

// Get returns the current manifest.
func (h *Holder) Get() *Manifest {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.m
}

// Replace atomically swaps in a new manifest.
func (h *Holder) Replace(m *Manifest) {
	h.mu.Lock()
	h.m = m
	h.mu.Unlock()
}
