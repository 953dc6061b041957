// File: shm/enhanced.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package shm

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/geomesh/api"
)

// InvalidationFunc is told that region id moved from oldVersion to
// newVersion.
type InvalidationFunc func(data any, id uint64, oldVersion, newVersion uint64)

// HistoryEntry records one reported invalidation.
type HistoryEntry struct {
	Version   uint64    `yaml:"version"`
	Size      int       `yaml:"size"`
	Timestamp time.Time `yaml:"timestamp"`
}

// HandleID identifies an invalidation callback registration.
type HandleID uint64

type invalidationHook struct {
	id   HandleID
	fn   InvalidationFunc
	data any
}

// Enhanced is a Region with a stable id, an optional bounded history and
// invalidation callbacks. History and callbacks are driven only by explicit
// TriggerInvalidation calls made by the writer after committing.
type Enhanced struct {
	*Region
	id uint64

	mu      sync.Mutex
	history []HistoryEntry
	head    int
	filled  int
	hooks   []invalidationHook
	nextID  HandleID

	invalidations atomic.Uint64
}

// EnhancedStats extends RegionStats with invalidation bookkeeping.
type EnhancedStats struct {
	RegionStats   `yaml:",inline"`
	ID            uint64 `yaml:"id"`
	Invalidations uint64 `yaml:"invalidations"`
	HistorySize   int    `yaml:"history_size"`
	HistoryCap    int    `yaml:"history_capacity"`
	Callbacks     int    `yaml:"callbacks"`
}

// NewEnhanced allocates an enhanced region with a stable id.
func NewEnhanced(size int, mode Mode, id uint64) (*Enhanced, error) {
	r, err := NewRegion(size, mode)
	if err != nil {
		return nil, err
	}
	return &Enhanced{Region: r, id: id}, nil
}

// ID returns the stable region id.
func (e *Enhanced) ID() uint64 { return e.id }

// EnableHistory allocates a circular history of the given capacity,
// discarding any previous entries.
func (e *Enhanced) EnableHistory(capacity int) error {
	if capacity <= 0 {
		return api.Invalid("shm: history capacity must be positive").WithContext("capacity", capacity)
	}
	e.mu.Lock()
	e.history = make([]HistoryEntry, capacity)
	e.head, e.filled = 0, 0
	e.mu.Unlock()
	return nil
}

// SetCallback replaces every registered callback with fn. A nil fn clears
// the list.
func (e *Enhanced) SetCallback(fn InvalidationFunc, data any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = e.hooks[:0]
	if fn != nil {
		e.nextID++
		e.hooks = append(e.hooks, invalidationHook{id: e.nextID, fn: fn, data: data})
	}
}

// AddCallback appends fn to the callback list.
func (e *Enhanced) AddCallback(fn InvalidationFunc, data any) (HandleID, error) {
	if fn == nil {
		return 0, api.Invalid("shm: nil invalidation callback")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.hooks = append(e.hooks, invalidationHook{id: e.nextID, fn: fn, data: data})
	return e.nextID, nil
}

// RemoveCallback removes a callback, preserving the order of the rest.
func (e *Enhanced) RemoveCallback(id HandleID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, h := range e.hooks {
		if h.id == id {
			e.hooks = append(e.hooks[:i], e.hooks[i+1:]...)
			return nil
		}
	}
	return api.NewError(api.ErrCodeNotFound, "shm: no such callback").WithContext("handle", id)
}

// TriggerInvalidation records a version transition: it appends a history
// entry when history is enabled, invokes the callbacks in order and counts
// the invalidation.
func (e *Enhanced) TriggerInvalidation(oldVersion, newVersion uint64) {
	e.mu.Lock()
	if n := len(e.history); n > 0 {
		e.history[e.head] = HistoryEntry{Version: newVersion, Size: e.Size(), Timestamp: time.Now()}
		e.head = (e.head + 1) % n
		if e.filled < n {
			e.filled++
		}
	}
	hooks := append([]invalidationHook(nil), e.hooks...)
	e.mu.Unlock()

	for _, h := range hooks {
		h.fn(h.data, e.id, oldVersion, newVersion)
	}
	e.invalidations.Add(1)
}

// Commit releases the write identified by tok and reports the resulting
// invalidation.
func (e *Enhanced) Commit(tok WriteToken) error {
	old := e.Version()
	if err := e.ReleaseWrite(tok); err != nil {
		return err
	}
	e.TriggerInvalidation(old, old+1)
	return nil
}

// History returns the recorded entries, oldest first.
func (e *Enhanced) History() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.history)
	out := make([]HistoryEntry, 0, e.filled)
	start := (e.head - e.filled + n) % max(n, 1)
	for i := 0; i < e.filled; i++ {
		out = append(out, e.history[(start+i)%n])
	}
	return out
}

// ExtendedStats returns region and invalidation counters.
func (e *Enhanced) ExtendedStats() EnhancedStats {
	e.mu.Lock()
	size, capacity, hooks := e.filled, len(e.history), len(e.hooks)
	e.mu.Unlock()
	return EnhancedStats{
		RegionStats:   e.Stats(),
		ID:            e.id,
		Invalidations: e.invalidations.Load(),
		HistorySize:   size,
		HistoryCap:    capacity,
		Callbacks:     hooks,
	}
}
