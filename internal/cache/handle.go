package cache

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle is a consumer's subscription to one cache entry.
type Handle struct {
	id       uuid.UUID
	cache    *Cache
	entry    *entry
	interval time.Duration

	mu        sync.Mutex
	listeners []func(Snapshot)
}

func (h *Handle) ID() string {
	return h.id.String()
}

func (h *Handle) Key() Key {
	return h.entry.key
}

func (h *Handle) Interval() time.Duration {
	return h.interval
}

func (h *Handle) Snapshot() Snapshot {
	return h.cache.snapshot(h.entry)
}

// OnChange registers fn to be called after every change to the entry:
// a request starting, a response being applied or a failure being recorded.
func (h *Handle) OnChange(fn func(Snapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Refetch asks for an immediate fetch. It joins an outstanding request
// instead of issuing another.
func (h *Handle) Refetch() {
	h.cache.refresh(h.entry)
}

func (h *Handle) listenersSnapshot() []func(Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.listeners)
}
