// File: hierarchy/thread.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hierarchy

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/geomesh/api"
	"github.com/momentics/geomesh/geometry"
	"github.com/momentics/geomesh/pool"
	"github.com/momentics/geomesh/shm"
	"github.com/momentics/geomesh/state"
)

// Role is the position of a thread in the hierarchy.
type Role int

const (
	RoleControl Role = iota // root of the hierarchy, at the mesh centre
	RoleWorker
	RoleManager // intermediate node with children
	RoleHelper
)

func (r Role) String() string {
	switch r {
	case RoleControl:
		return "control"
	case RoleWorker:
		return "worker"
	case RoleManager:
		return "manager"
	case RoleHelper:
		return "helper"
	}
	return "unknown"
}

// Relationship classifies a neighbor edge.
type Relationship int

const (
	RelParent Relationship = iota
	RelChild
	RelSibling
	RelNeighbor // kissing sphere
	RelNone
)

func (r Relationship) String() string {
	switch r {
	case RelParent:
		return "parent"
	case RelChild:
		return "child"
	case RelSibling:
		return "sibling"
	case RelNeighbor:
		return "neighbor"
	case RelNone:
		return "none"
	}
	return "unknown"
}

// Neighbor is one edge of a thread's neighbor list.
type Neighbor struct {
	ID           int          `yaml:"id"`
	Relationship Relationship `yaml:"relationship"`
	Distance     float64      `yaml:"distance"`
}

// Thread is one unit of the hierarchy. Threads are created and freed by
// their Pool; parent and children are ids into the same pool.
type Thread struct {
	id     int
	role   Role
	pos    geometry.Position
	vertex int

	mu        sync.RWMutex
	parent    int
	children  []int
	neighbors []Neighbor

	machine      *state.Machine
	arena        *pool.Arena
	local        *shm.Enhanced
	parentShared *shm.Enhanced

	sendMu sync.Mutex
	recvMu sync.Mutex

	sent         atomic.Uint64
	received     atomic.Uint64
	completed    atomic.Uint64
	failed       atomic.Uint64
	stolen       atomic.Uint64
	stateChanges atomic.Uint64
	created      time.Time
}

// ID returns the thread id.
func (t *Thread) ID() int { return t.id }

// Role returns the thread role.
func (t *Thread) Role() Role { return t.role }

// Position returns the clock-lattice address.
func (t *Thread) Position() geometry.Position { return t.pos }

// Vertex returns the icosahedron vertex index the thread sits on. The
// control thread reports -1.
func (t *Thread) Vertex() int { return t.vertex }

// Parent returns the parent id, or -1 for a root.
func (t *Thread) Parent() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.parent
}

// Children returns a copy of the child ids in insertion order.
func (t *Thread) Children() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.children)
}

// NumChildren returns the child count.
func (t *Thread) NumChildren() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.children)
}

// Neighbors returns a copy of the neighbor list.
func (t *Thread) Neighbors() []Neighbor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.neighbors)
}

// Neighbor returns the edge to id.
func (t *Thread) Neighbor(id int) (Neighbor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, n := range t.neighbors {
		if n.ID == id {
			return n, true
		}
	}
	return Neighbor{}, false
}

// NeighborsByRelation returns the neighbors with the given relationship.
func (t *Thread) NeighborsByRelation(rel Relationship) []Neighbor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Neighbor
	for _, n := range t.neighbors {
		if n.Relationship == rel {
			out = append(out, n)
		}
	}
	return out
}

// Machine returns the private state machine.
func (t *Thread) Machine() *state.Machine { return t.machine }

// State returns the current state.
func (t *Thread) State() state.State { return t.machine.State() }

// ChangeState transitions the private state machine.
func (t *Thread) ChangeState(s state.State) state.Result {
	r := t.machine.Transition(s)
	if r == state.ResultSuccess {
		t.stateChanges.Add(1)
	}
	return r
}

// AllocLocal carves size bytes from the thread's private arena. The memory
// carries no cross-thread visibility guarantees.
func (t *Thread) AllocLocal(size int) ([]byte, error) {
	return t.arena.Alloc(size)
}

// Local returns the private LockedWrite region.
func (t *Thread) Local() *shm.Enhanced { return t.local }

// ParentShared returns the CopyOnWrite region shared with the parent, or
// nil for a root.
func (t *Thread) ParentShared() *shm.Enhanced { return t.parentShared }

func (t *Thread) addChild(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.children) >= MaxChildren {
		return false
	}
	t.children = append(t.children, id)
	return true
}

func (t *Thread) removeChild(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.children = slices.DeleteFunc(t.children, func(c int) bool { return c == id })
}

// roomFor fails when an edge to id would exceed MaxNeighbors.
func (t *Thread) roomFor(id int) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.neighbors) < MaxNeighbors || slices.ContainsFunc(t.neighbors, func(n Neighbor) bool { return n.ID == id }) {
		return nil
	}
	return api.Full("hierarchy: neighbor list full").WithContext("id", t.id)
}

// link appends n unless an edge to n.ID exists.
func (t *Thread) link(n Neighbor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !slices.ContainsFunc(t.neighbors, func(e Neighbor) bool { return e.ID == n.ID }) {
		t.neighbors = append(t.neighbors, n)
	}
}

func (t *Thread) removeNeighbor(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.neighbors)
	t.neighbors = slices.DeleteFunc(t.neighbors, func(e Neighbor) bool { return e.ID == id })
	return len(t.neighbors) != n
}

func (t *Thread) setParent(id int) {
	t.mu.Lock()
	t.parent = id
	t.mu.Unlock()
}
