// File: shm/rainbow.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package shm

import (
	"fmt"
	"io"
	"sync"

	"github.com/momentics/geomesh/api"
)

// DefaultBase is the lattice base recorded by NewRainbowTable when none is
// given.
const DefaultBase = 12

// RainbowTable maps region ids to regions by direct indexing: region id N
// lives in slot N. The table holds non-owning references.
type RainbowTable struct {
	mu    sync.RWMutex
	slots []*Enhanced
	count int
	base  uint32
}

// RainbowStats is a snapshot of table occupancy.
type RainbowStats struct {
	Regions    int     `yaml:"regions"`
	Capacity   int     `yaml:"capacity"`
	LoadFactor float64 `yaml:"load_factor"`
	Base       uint32  `yaml:"base"`
}

// NewRainbowTable allocates a table with room for ids [0, capacity).
func NewRainbowTable(capacity int, base uint32) (*RainbowTable, error) {
	if capacity <= 0 {
		return nil, api.Invalid("shm: table capacity must be positive").WithContext("capacity", capacity)
	}
	if base == 0 {
		base = DefaultBase
	}
	return &RainbowTable{slots: make([]*Enhanced, capacity), base: base}, nil
}

// Register stores region under id. When the table is full its capacity
// doubles first. The id must then be below the capacity and its slot empty.
func (t *RainbowTable) Register(region *Enhanced, id uint64) error {
	if region == nil {
		return api.Invalid("shm: nil region")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count >= len(t.slots) {
		grown := make([]*Enhanced, 2*len(t.slots))
		copy(grown, t.slots)
		t.slots = grown
	}
	if id >= uint64(len(t.slots)) {
		return api.Invalid("shm: region id beyond table capacity").
			WithContext("id", id).WithContext("capacity", len(t.slots))
	}
	if t.slots[id] != nil {
		return api.NewError(api.ErrCodeAlreadyExists, "shm: region id in use").WithContext("id", id)
	}
	t.slots[id] = region
	t.count++
	return nil
}

// Unregister clears slot id.
func (t *RainbowTable) Unregister(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id >= uint64(len(t.slots)) || t.slots[id] == nil {
		return api.NewError(api.ErrCodeNotFound, "shm: region not registered").WithContext("id", id)
	}
	t.slots[id] = nil
	t.count--
	return nil
}

// Lookup returns the region stored under id, or nil.
func (t *RainbowTable) Lookup(id uint64) *Enhanced {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id >= uint64(len(t.slots)) {
		return nil
	}
	return t.slots[id]
}

// Exists reports whether id is registered.
func (t *RainbowTable) Exists(id uint64) bool { return t.Lookup(id) != nil }

// IDs lists registered ids in ascending order.
func (t *RainbowTable) IDs() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]uint64, 0, t.count)
	for i, r := range t.slots {
		if r != nil {
			out = append(out, uint64(i))
		}
	}
	return out
}

// Stats returns occupancy counters.
func (t *RainbowTable) Stats() RainbowStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return RainbowStats{
		Regions:    t.count,
		Capacity:   len(t.slots),
		LoadFactor: float64(t.count) / float64(len(t.slots)),
		Base:       t.base,
	}
}

// PrintInfo writes a short human-readable summary of the table.
func (t *RainbowTable) PrintInfo(w io.Writer) error {
	st := t.Stats()
	_, err := fmt.Fprintf(w, "rainbow table: base=%d regions=%d capacity=%d load=%.2f\n",
		st.Base, st.Regions, st.Capacity, st.LoadFactor)
	if err != nil {
		return err
	}
	for _, id := range t.IDs() {
		r := t.Lookup(id)
		if r == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "  [%d] size=%d mode=%s version=%d\n",
			id, r.Size(), r.Mode(), r.Version()); err != nil {
			return err
		}
	}
	return nil
}
