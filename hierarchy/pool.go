// File: hierarchy/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/geomesh/api"
	"github.com/momentics/geomesh/boundary"
	"github.com/momentics/geomesh/geometry"
	"github.com/momentics/geomesh/internal/concurrency"
	"github.com/momentics/geomesh/internal/logging"
	"github.com/momentics/geomesh/pool"
	"github.com/momentics/geomesh/shm"
	"github.com/momentics/geomesh/state"
	"github.com/momentics/geomesh/work"
)

// Pool owns the mesh: an id-indexed arena of threads, their state machines,
// the work distributor, the rainbow table of regions, the global region and
// the boundary registry.
//
// Structural changes (CreateThread, FreeThread, AddNeighbor) are serialized
// by the pool lock.
type Pool struct {
	id       string
	cfg      Config
	lattice  *geometry.Lattice
	log      *slog.Logger
	affinity api.Affinity

	mu      sync.RWMutex
	threads []*Thread
	count   int

	states     *state.Manager
	dist       *work.Distributor
	rainbow    *shm.RainbowTable
	global     *shm.Enhanced
	boundaries *boundary.System
	chunks     *pool.ChunkPool

	runMu   sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	running atomic.Bool
	closed  atomic.Bool
}

// NewPool builds the mesh for cfg. It does not create any thread.
func NewPool(lattice *geometry.Lattice, cfg Config, opts ...Option) (*Pool, error) {
	if lattice == nil {
		return nil, api.Invalid("hierarchy: nil lattice")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	p := &Pool{
		id:       uuid.NewString(),
		cfg:      cfg,
		lattice:  lattice,
		log:      logging.Nop(),
		affinity: concurrency.Affinity{},
		threads:  make([]*Thread, cfg.MaxThreads),
	}
	for _, o := range opts {
		o(p)
	}
	p.log = p.log.With("component", "hierarchy", "pool", p.id)

	var err error
	if p.states, err = state.NewManager(cfg.MaxThreads, 0); err != nil {
		return nil, fmt.Errorf("hierarchy: state manager: %w", err)
	}
	if p.dist, err = work.NewDistributor(cfg.MaxThreads, cfg.TaskCapacity); err != nil {
		return nil, fmt.Errorf("hierarchy: distributor: %w", err)
	}
	if p.rainbow, err = shm.NewRainbowTable(cfg.RainbowCapacity, shm.DefaultBase); err != nil {
		return nil, fmt.Errorf("hierarchy: rainbow table: %w", err)
	}
	if p.chunks, err = pool.NewChunkPool(pool.DefaultChunkSize, 0, cfg.NUMAAware); err != nil {
		return nil, fmt.Errorf("hierarchy: chunk pool: %w", err)
	}
	if p.global, err = shm.NewEnhanced(cfg.GlobalRegionSize, shm.LockedWrite, 0); err != nil {
		p.chunks.Close()
		return nil, fmt.Errorf("hierarchy: global region: %w", err)
	}
	if err = p.rainbow.Register(p.global, 0); err != nil {
		_ = p.global.Close()
		p.chunks.Close()
		return nil, fmt.Errorf("hierarchy: register global region: %w", err)
	}
	p.boundaries = boundary.NewSystem(cfg.MaxThreads * MaxNeighbors / 2)

	p.log.Debug("hierarchy: pool created",
		"max_threads", cfg.MaxThreads,
		"symmetry_fold", cfg.SymmetryFold,
		"num_dimensions", cfg.NumDimensions,
		"numa_aware", cfg.NUMAAware)
	return p, nil
}

// ID returns the pool instance id.
func (p *Pool) ID() string { return p.id }

// Config returns the effective configuration.
func (p *Pool) Config() Config { return p.cfg }

// Lattice returns the lookup tables the pool places threads with.
func (p *Pool) Lattice() *geometry.Lattice { return p.lattice }

// States returns the state manager.
func (p *Pool) States() *state.Manager { return p.states }

// Distributor returns the work engine. Worker slots are thread ids.
func (p *Pool) Distributor() *work.Distributor { return p.dist }

// Rainbow returns the region index.
func (p *Pool) Rainbow() *shm.RainbowTable { return p.rainbow }

// Global returns the pool-wide region (rainbow id 0).
func (p *Pool) Global() *shm.Enhanced { return p.global }

// Boundaries returns the boundary registry.
func (p *Pool) Boundaries() *boundary.System { return p.boundaries }

// Logger returns the pool logger.
func (p *Pool) Logger() *slog.Logger { return p.log }

func (p *Pool) localRegionID(id int) uint64 { return uint64(1 + id) }

func (p *Pool) parentRegionID(id int) uint64 { return uint64(1 + p.cfg.MaxThreads + id) }

// placement computes the address of a new thread. The control thread sits
// at the mesh centre; every other role takes the icosahedron vertex of
// id mod fold, one ring further out per completed fold.
func (p *Pool) placement(id int, role Role) (geometry.Position, int) {
	if role == RoleControl {
		return geometry.Position{}, -1
	}
	fold := p.cfg.SymmetryFold
	v := id % fold
	return geometry.Position{
		Ring:      uint8(1 + (id/fold)%(geometry.Rings-1)),
		Index:     uint8(v % geometry.ClockPositions),
		Magnitude: int64(id / fold),
	}, v % geometry.IcosahedronVertices
}

// CreateThread adds thread id with the given role. parentID is -1 for a
// root. The new thread starts in state.Initialized.
func (p *Pool) CreateThread(id int, role Role, parentID int) (*Thread, error) {
	if id < 0 || id >= p.cfg.MaxThreads {
		return nil, api.Invalid("hierarchy: thread id out of range").
			WithContext("id", id).WithContext("max_threads", p.cfg.MaxThreads)
	}
	if role < RoleControl || role > RoleHelper {
		return nil, api.Invalid("hierarchy: unknown role").WithContext("role", int(role))
	}
	if parentID == id || parentID < -1 || parentID >= p.cfg.MaxThreads {
		return nil, api.Invalid("hierarchy: bad parent").WithContext("parent", parentID)
	}
	if p.closed.Load() {
		return nil, api.ErrClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.threads[id] != nil {
		return nil, api.NewError(api.ErrCodeAlreadyExists, "hierarchy: thread exists").WithContext("id", id)
	}
	var parent *Thread
	if parentID >= 0 {
		if parent = p.threads[parentID]; parent == nil {
			return nil, api.NewError(api.ErrCodeNotFound, "hierarchy: parent not found").WithContext("parent", parentID)
		}
		if parent.NumChildren() >= MaxChildren {
			return nil, api.Full("hierarchy: parent has too many children").WithContext("parent", parentID)
		}
	}

	pos, vertex := p.placement(id, role)
	t := &Thread{
		id:      id,
		role:    role,
		pos:     pos,
		vertex:  vertex,
		parent:  parentID,
		arena:   pool.NewArena(p.chunks),
		created: time.Now(),
	}
	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
	undo = append(undo, t.arena.Release)

	m, err := p.states.CreateMachine(uint64(id), state.Initialized, machineRules, machineCallbacks)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("hierarchy: thread %d machine: %w", id, err)
	}
	m.SetContext(t)
	t.machine = m
	undo = append(undo, func() { _ = p.states.DestroyMachine(uint64(id)) })

	if t.local, err = p.newRegion(shm.LockedWrite, p.localRegionID(id)); err != nil {
		rollback()
		return nil, fmt.Errorf("hierarchy: thread %d local region: %w", id, err)
	}
	undo = append(undo, func() { p.dropRegion(t.local) })

	if parent != nil {
		if t.parentShared, err = p.newRegion(shm.CopyOnWrite, p.parentRegionID(id)); err != nil {
			rollback()
			return nil, fmt.Errorf("hierarchy: thread %d parent region: %w", id, err)
		}
		parent.addChild(id)
	}

	p.threads[id] = t
	p.count++
	p.log.Debug("hierarchy: thread created",
		"id", id, "role", role.String(), "parent", parentID, "position", pos.String())
	return t, nil
}

func (p *Pool) newRegion(mode shm.Mode, rid uint64) (*shm.Enhanced, error) {
	r, err := shm.NewEnhanced(RegionSize, mode, rid)
	if err != nil {
		return nil, err
	}
	if p.cfg.HistoryCapacity > 0 {
		if err := r.EnableHistory(p.cfg.HistoryCapacity); err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	if err := p.rainbow.Register(r, rid); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (p *Pool) dropRegion(r *shm.Enhanced) {
	if r == nil {
		return
	}
	_ = p.rainbow.Unregister(r.ID())
	_ = r.Close()
}

// Thread returns thread id.
func (p *Pool) Thread(id int) (*Thread, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t := p.thread(id)
	return t, t != nil
}

func (p *Pool) thread(id int) *Thread {
	if id < 0 || id >= len(p.threads) {
		return nil
	}
	return p.threads[id]
}

func (p *Pool) mustThread(id int) (*Thread, error) {
	if id < 0 || id >= p.cfg.MaxThreads {
		return nil, api.Invalid("hierarchy: thread id out of range").WithContext("id", id)
	}
	t := p.thread(id)
	if t == nil {
		return nil, api.NewError(api.ErrCodeNotFound, "hierarchy: no such thread").WithContext("id", id)
	}
	return t, nil
}

// Threads returns the live threads in id order.
func (p *Pool) Threads() []*Thread {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Thread, 0, p.count)
	for _, t := range p.threads {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of live threads.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.count
}

// FreeThread destroys thread id: its machine, regions, arena and every
// boundary it shares. Children become roots; edges pointing at it are
// dropped from other threads.
func (p *Pool) FreeThread(id int) error {
	if p.running.Load() {
		return api.NewError(api.ErrCodeInvalidTransition, "hierarchy: cannot free threads while running")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	t, err := p.mustThread(id)
	if err != nil {
		return err
	}
	p.free(t)
	p.log.Debug("hierarchy: thread freed", "id", id)
	return nil
}

func (p *Pool) free(t *Thread) {
	id := t.id
	if parent := p.thread(t.Parent()); parent != nil {
		parent.removeChild(id)
	}
	for _, c := range t.Children() {
		if ct := p.thread(c); ct != nil {
			ct.setParent(-1)
		}
	}
	peers := map[int]struct{}{}
	for _, n := range t.Neighbors() {
		peers[n.ID] = struct{}{}
	}
	for _, other := range p.threads {
		if other != nil && other != t && other.removeNeighbor(id) {
			peers[other.id] = struct{}{}
		}
	}
	for peer := range peers {
		if b := p.boundaries.Find(id, peer); b != nil {
			_ = p.boundaries.Remove(id, peer)
			_ = b.Destroy()
		}
	}
	p.dropRegion(t.parentShared)
	p.dropRegion(t.local)
	_ = p.states.DestroyMachine(uint64(id))
	t.arena.Release()
	p.threads[id] = nil
	p.count--
}

// AddNeighbor records b as a neighbor of a and returns the boundary shared
// by the pair, creating it on first use. Adding an existing edge is a no-op
// that returns the same boundary.
func (p *Pool) AddNeighbor(a, b int, rel Relationship, distance float64) (*boundary.Boundary, error) {
	if a == b {
		return nil, api.Invalid("hierarchy: thread cannot neighbor itself").WithContext("id", a)
	}
	if math.IsNaN(distance) || distance < 0 {
		return nil, api.Invalid("hierarchy: bad distance").WithContext("distance", distance)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ta, err := p.mustThread(a)
	if err != nil {
		return nil, err
	}
	if _, err := p.mustThread(b); err != nil {
		return nil, err
	}
	if err := ta.roomFor(b); err != nil {
		return nil, err
	}
	bd, err := p.boundaryFor(a, b)
	if err != nil {
		return nil, err
	}
	ta.link(Neighbor{ID: b, Relationship: rel, Distance: distance})
	return bd, nil
}

// Connect adds the edge in both directions using the geometric distance.
// Either both edges are recorded or, on error, nothing changes.
func (p *Pool) Connect(a, b int, rel Relationship) (*boundary.Boundary, error) {
	if a == b {
		return nil, api.Invalid("hierarchy: thread cannot neighbor itself").WithContext("id", a)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ta, err := p.mustThread(a)
	if err != nil {
		return nil, err
	}
	tb, err := p.mustThread(b)
	if err != nil {
		return nil, err
	}
	if err := ta.roomFor(b); err != nil {
		return nil, err
	}
	if err := tb.roomFor(a); err != nil {
		return nil, err
	}
	bd, err := p.boundaryFor(a, b)
	if err != nil {
		return nil, err
	}
	d := geometry.Distance(ta.pos, tb.pos)
	ta.link(Neighbor{ID: b, Relationship: rel, Distance: d})
	tb.link(Neighbor{ID: a, Relationship: rel, Distance: d})
	return bd, nil
}

// boundaryFor returns the boundary of the pair, creating it when missing.
// p.mu must be held for writing.
func (p *Pool) boundaryFor(a, b int) (*boundary.Boundary, error) {
	if bd := p.boundaries.Find(a, b); bd != nil {
		return bd, nil
	}
	bd, err := boundary.New(min(a, b), max(a, b), p.cfg.BoundarySize)
	if err != nil {
		return nil, err
	}
	if err := p.boundaries.Add(bd); err != nil {
		return nil, err
	}
	p.log.Debug("hierarchy: boundary created", "a", min(a, b), "b", max(a, b), "size", bd.Size())
	return bd, nil
}

// Neighbor returns the edge a -> b.
func (p *Pool) Neighbor(a, b int) (Neighbor, bool) {
	t, ok := p.Thread(a)
	if !ok {
		return Neighbor{}, false
	}
	return t.Neighbor(b)
}

// Boundary returns the boundary shared by a and b, or nil.
func (p *Pool) Boundary(a, b int) *boundary.Boundary {
	return p.boundaries.Find(a, b)
}

// Distance returns the geometric distance between two threads.
func (p *Pool) Distance(a, b int) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ta, err := p.mustThread(a)
	if err != nil {
		return 0, err
	}
	tb, err := p.mustThread(b)
	if err != nil {
		return 0, err
	}
	return geometry.Distance(ta.pos, tb.pos), nil
}

// FindNearestNeighbors returns up to k thread ids closest to id, nearest
// first, ties by ascending id. The thread itself is excluded.
func (p *Pool) FindNearestNeighbors(id, k int) ([]int, error) {
	if k < 0 {
		return nil, api.Invalid("hierarchy: negative k").WithContext("k", k)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	self, err := p.mustThread(id)
	if err != nil {
		return nil, err
	}
	type cand struct {
		id int
		d  float64
	}
	best := make([]cand, 0, k+1)
	for _, t := range p.threads {
		if t == nil || t == self {
			continue
		}
		c := cand{t.id, geometry.Distance(self.pos, t.pos)}
		// Threads are visited in id order, so strict comparison keeps ties
		// ordered by id.
		i := len(best)
		for i > 0 && c.d < best[i-1].d {
			i--
		}
		if i >= k {
			continue
		}
		best = slices.Insert(best, i, c)
		if len(best) > k {
			best = best[:k]
		}
	}
	out := make([]int, len(best))
	for i, c := range best {
		out[i] = c.id
	}
	return out, nil
}

// Siblings returns the other children of id's parent.
func (p *Pool) Siblings(id int) ([]int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, err := p.mustThread(id)
	if err != nil {
		return nil, err
	}
	parent := p.thread(t.Parent())
	if parent == nil {
		return nil, nil
	}
	return slices.DeleteFunc(parent.Children(), func(c int) bool { return c == id }), nil
}

// ChildShared returns the region parent shares with child.
func (p *Pool) ChildShared(parent, child int) (*shm.Enhanced, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, err := p.mustThread(child)
	if err != nil {
		return nil, err
	}
	if c.Parent() != parent {
		return nil, api.NewError(api.ErrCodeNotFound, "hierarchy: not a child").
			WithContext("parent", parent).WithContext("child", child)
	}
	return c.parentShared, nil
}

// ChangeState transitions thread id.
func (p *Pool) ChangeState(id int, s state.State) (state.Result, error) {
	t, ok := p.Thread(id)
	if !ok {
		return state.ResultError, api.NewError(api.ErrCodeNotFound, "hierarchy: no such thread").WithContext("id", id)
	}
	return t.ChangeState(s), nil
}

// State returns the state of thread id.
func (p *Pool) State(id int) (state.State, error) {
	t, ok := p.Thread(id)
	if !ok {
		return state.Uninitialized, api.NewError(api.ErrCodeNotFound, "hierarchy: no such thread").WithContext("id", id)
	}
	return t.State(), nil
}

// Close stops the runners and frees every thread, boundary and region.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if p.running.Load() {
		p.Stop()
		errs = append(errs, p.Wait())
	}
	p.mu.Lock()
	for _, t := range p.threads {
		if t != nil {
			p.free(t)
		}
	}
	p.mu.Unlock()
	_ = p.rainbow.Unregister(0)
	errs = append(errs, p.global.Close())
	p.chunks.Close()
	p.log.Debug("hierarchy: pool closed")
	return errors.Join(errs...)
}

// Coordinates returns the 3-D location of thread id on the icosahedron; the
// control thread sits at the origin.
func (p *Pool) Coordinates(id int) ([3]float64, error) {
	t, ok := p.Thread(id)
	if !ok {
		return [3]float64{}, api.NewError(api.ErrCodeNotFound, "hierarchy: no such thread").WithContext("id", id)
	}
	if t.vertex < 0 {
		return [3]float64{}, nil
	}
	return p.lattice.Vertex(t.vertex), nil
}

// ConnectLattice links every pair of non-control threads whose vertices are
// adjacent on the icosahedron. It returns the number of pairs linked.
func (p *Pool) ConnectLattice() (int, error) {
	threads := p.Threads()
	linked := 0
	for i, a := range threads {
		if a.vertex < 0 {
			continue
		}
		for _, b := range threads[i+1:] {
			if b.vertex < 0 || !p.lattice.Adjacent(a.vertex, b.vertex) {
				continue
			}
			if _, err := p.Connect(a.id, b.id, RelNeighbor); err != nil {
				if errors.Is(err, api.ErrCapacityExceeded) {
					continue
				}
				return linked, err
			}
			linked++
		}
	}
	p.log.Debug("hierarchy: lattice connected", "pairs", linked)
	return linked, nil
}
