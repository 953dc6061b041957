// File: boundary/system.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package boundary

import (
	"sync"

	"github.com/momentics/geomesh/api"
)

// DefaultMaxBoundaries bounds a System created with max <= 0.
const DefaultMaxBoundaries = 1024

// System is a bounded collection of boundaries. It references boundaries
// without owning them.
type System struct {
	mu         sync.RWMutex
	boundaries []*Boundary
	max        int
}

// SystemStats aggregates the counters of every boundary in a System.
type SystemStats struct {
	Boundaries    int    `yaml:"boundaries"`
	Max           int    `yaml:"max"`
	TotalReads    uint64 `yaml:"total_reads"`
	TotalWrites   uint64 `yaml:"total_writes"`
	Conflicts     uint64 `yaml:"total_conflicts"`
	Invalidations uint64 `yaml:"total_invalidations"`
	TotalSize     int    `yaml:"total_size"`
}

// NewSystem creates an empty system holding at most max boundaries.
func NewSystem(max int) *System {
	if max <= 0 {
		max = DefaultMaxBoundaries
	}
	return &System{boundaries: make([]*Boundary, 0, max), max: max}
}

// Add appends b. A second boundary for the same pair is rejected.
func (s *System) Add(b *Boundary) error {
	if b == nil {
		return api.Invalid("boundary: nil boundary")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.boundaries) >= s.max {
		return api.Full("boundary: system full").WithContext("max", s.max)
	}
	if s.find(b.sphereA, b.sphereB) != nil {
		return api.NewError(api.ErrCodeAlreadyExists, "boundary: pair already present").
			WithContext("a", b.sphereA).WithContext("b", b.sphereB)
	}
	s.boundaries = append(s.boundaries, b)
	return nil
}

// Find returns the boundary between a and b in either order, or nil.
func (s *System) Find(a, b int) *Boundary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(a, b)
}

func (s *System) find(a, b int) *Boundary {
	for _, kb := range s.boundaries {
		if (kb.sphereA == a && kb.sphereB == b) || (kb.sphereA == b && kb.sphereB == a) {
			return kb
		}
	}
	return nil
}

// Remove drops the boundary between a and b.
func (s *System) Remove(a, b int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, kb := range s.boundaries {
		if (kb.sphereA == a && kb.sphereB == b) || (kb.sphereA == b && kb.sphereB == a) {
			s.boundaries = append(s.boundaries[:i], s.boundaries[i+1:]...)
			return nil
		}
	}
	return api.NewError(api.ErrCodeNotFound, "boundary: pair not present").
		WithContext("a", a).WithContext("b", b)
}

// Len returns the number of boundaries.
func (s *System) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.boundaries)
}

// Validate checks the count bound, every boundary and pair uniqueness.
func (s *System) Validate() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.boundaries) > s.max {
		return false
	}
	seen := make(map[[2]int]struct{}, len(s.boundaries))
	for _, kb := range s.boundaries {
		if !kb.Valid() {
			return false
		}
		key := [2]int{min(kb.sphereA, kb.sphereB), max(kb.sphereA, kb.sphereB)}
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}

// Stats sums the counters of every boundary.
func (s *System) Stats() SystemStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := SystemStats{Boundaries: len(s.boundaries), Max: s.max}
	for _, kb := range s.boundaries {
		bs := kb.Stats()
		st.TotalReads += bs.ReadsA + bs.ReadsB
		st.TotalWrites += bs.WritesA + bs.WritesB
		st.Conflicts += bs.Conflicts
		st.Invalidations += bs.Invalidations
		st.TotalSize += bs.Size
	}
	return st
}
