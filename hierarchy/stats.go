// File: hierarchy/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hierarchy

import (
	"time"

	"github.com/momentics/geomesh/api"
	"github.com/momentics/geomesh/state"
)

// ThreadStats is a snapshot of one thread.
type ThreadStats struct {
	ID               int           `yaml:"id"`
	Role             string        `yaml:"role"`
	State            string        `yaml:"state"`
	Position         string        `yaml:"position"`
	Children         int           `yaml:"children"`
	Neighbors        int           `yaml:"neighbors"`
	MessagesSent     uint64        `yaml:"messages_sent"`
	MessagesReceived uint64        `yaml:"messages_received"`
	WorkCompleted    uint64        `yaml:"work_completed"`
	WorkFailed       uint64        `yaml:"work_failed"`
	WorkStolen       uint64        `yaml:"work_stolen"`
	WorkPending      int           `yaml:"work_pending"`
	StateChanges     uint64        `yaml:"state_changes"`
	LocalMemoryUsed  uint64        `yaml:"local_memory_used"`
	SharedMemory     int           `yaml:"shared_memory"`
	BoundaryMemory   int           `yaml:"boundary_memory"`
	Uptime           time.Duration `yaml:"uptime"`
}

// PoolStats aggregates every thread of a pool.
type PoolStats struct {
	ID                string  `yaml:"id"`
	Threads           int     `yaml:"threads"`
	MaxThreads        int     `yaml:"max_threads"`
	Levels            int     `yaml:"levels"`
	SymmetryFold      int     `yaml:"symmetry_fold"`
	Boundaries        int     `yaml:"boundaries"`
	Regions           int     `yaml:"regions"`
	TotalMessages     uint64  `yaml:"total_messages"`
	TotalWorkItems    uint64  `yaml:"total_work_items"`
	TotalStateChanges uint64  `yaml:"total_state_changes"`
	LocalMemoryUsed   uint64  `yaml:"local_memory_used"`
	SharedMemory      int     `yaml:"shared_memory"`
	BoundaryMemory    int     `yaml:"boundary_memory"`
	LoadBalanceFactor float64 `yaml:"load_balance_factor"`
}

// ThreadStats returns a snapshot of thread id.
func (p *Pool) ThreadStats(id int) (ThreadStats, error) {
	t, ok := p.Thread(id)
	if !ok {
		return ThreadStats{}, api.NewError(api.ErrCodeNotFound, "hierarchy: no such thread").WithContext("id", id)
	}
	return p.threadStats(t), nil
}

func (p *Pool) threadStats(t *Thread) ThreadStats {
	neighbors := t.Neighbors()
	st := ThreadStats{
		ID:               t.id,
		Role:             t.role.String(),
		State:            t.State().String(),
		Position:         t.pos.String(),
		Children:         t.NumChildren(),
		Neighbors:        len(neighbors),
		MessagesSent:     t.sent.Load(),
		MessagesReceived: t.received.Load(),
		WorkCompleted:    t.completed.Load(),
		WorkFailed:       t.failed.Load(),
		WorkStolen:       t.stolen.Load(),
		WorkPending:      p.dist.Load(t.id),
		StateChanges:     t.stateChanges.Load(),
		LocalMemoryUsed:  t.arena.Stats().Used,
		SharedMemory:     t.local.Size(),
		Uptime:           time.Since(t.created),
	}
	if t.parentShared != nil {
		st.SharedMemory += t.parentShared.Size()
	}
	for _, n := range neighbors {
		if b := p.Boundary(t.id, n.ID); b != nil {
			st.BoundaryMemory += b.Size()
		}
	}
	return st
}

// Stats aggregates the statistics of every live thread. The load balance
// factor is min/max completed work over non-control threads; 1.0 means
// perfect balance or no work yet.
func (p *Pool) Stats() PoolStats {
	threads := p.Threads()
	st := PoolStats{
		ID:                p.id,
		Threads:           len(threads),
		MaxThreads:        p.cfg.MaxThreads,
		SymmetryFold:      p.cfg.SymmetryFold,
		Boundaries:        p.boundaries.Len(),
		Regions:           p.rainbow.Stats().Regions,
		SharedMemory:      p.global.Size(),
		LoadBalanceFactor: 1,
	}
	var lo, hi uint64
	first := true
	for _, t := range threads {
		ts := p.threadStats(t)
		st.TotalMessages += ts.MessagesSent
		st.TotalWorkItems += ts.WorkCompleted
		st.TotalStateChanges += ts.StateChanges
		st.LocalMemoryUsed += ts.LocalMemoryUsed
		st.SharedMemory += ts.SharedMemory
		st.Levels = max(st.Levels, p.depth(t))
		if t.role == RoleControl {
			continue
		}
		if first {
			lo, hi, first = ts.WorkCompleted, ts.WorkCompleted, false
			continue
		}
		lo, hi = min(lo, ts.WorkCompleted), max(hi, ts.WorkCompleted)
	}
	st.BoundaryMemory = p.boundaries.Stats().TotalSize
	if hi > 0 {
		st.LoadBalanceFactor = float64(lo) / float64(hi)
	}
	return st
}

// depth counts the levels from t up to its root, t included.
func (p *Pool) depth(t *Thread) int {
	d := 1
	for parent := t.Parent(); parent >= 0 && d <= p.cfg.MaxThreads; d++ {
		pt, ok := p.Thread(parent)
		if !ok {
			break
		}
		parent = pt.Parent()
	}
	return d
}

// StateDurations returns the time thread id has spent in each standard
// state it has visited.
func (p *Pool) StateDurations(id int) (map[string]time.Duration, error) {
	t, ok := p.Thread(id)
	if !ok {
		return nil, api.NewError(api.ErrCodeNotFound, "hierarchy: no such thread").WithContext("id", id)
	}
	out := make(map[string]time.Duration)
	current := t.State()
	for s := state.Uninitialized; s <= state.Terminated; s++ {
		d := t.machine.TotalStateDuration(s)
		if d > 0 || s == current || t.machine.StateCount(s) > 0 {
			out[s.String()] = d
		}
	}
	return out, nil
}

// StatsMap implements api.StatsSource.
func (p *Pool) StatsMap() map[string]any {
	st := p.Stats()
	return map[string]any{
		"id":                  st.ID,
		"threads":             st.Threads,
		"max_threads":         st.MaxThreads,
		"levels":              st.Levels,
		"boundaries":          st.Boundaries,
		"regions":             st.Regions,
		"total_messages":      st.TotalMessages,
		"total_work_items":    st.TotalWorkItems,
		"total_state_changes": st.TotalStateChanges,
		"load_balance_factor": st.LoadBalanceFactor,
	}
}

var _ api.StatsSource = (*Pool)(nil)
