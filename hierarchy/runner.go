// File: hierarchy/runner.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hierarchy

import (
	"context"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/geomesh/api"
	"github.com/momentics/geomesh/geometry"
	"github.com/momentics/geomesh/internal/concurrency"
	"github.com/momentics/geomesh/state"
	"github.com/momentics/geomesh/work"
)

const idleBackoff = 200 * time.Microsecond

// Handler processes one task on behalf of thread t. A nil Handler runs the
// task's own function.
type Handler func(ctx context.Context, t *Thread, task *work.Task) error

// Start runs every live thread on its own goroutine locked to an OS thread,
// pinned to a CPU when the pool is NUMA aware. Each thread moves to Ready,
// then Running, and takes tasks from its distributor slot (stealing when
// idle) until ctx is cancelled or Stop is called; it then moves through
// Stopping to Stopped.
func (p *Pool) Start(ctx context.Context, h Handler) error {
	if p.closed.Load() {
		return api.ErrClosed
	}
	if !p.running.CompareAndSwap(false, true) {
		return api.NewError(api.ErrCodeAlreadyExists, "hierarchy: pool already running")
	}
	threads := p.Threads()
	if len(threads) == 0 {
		p.running.Store(false)
		return api.Invalid("hierarchy: no threads to run")
	}
	for i, t := range threads {
		prev := t.State()
		if r := t.ChangeState(state.Ready); r != state.ResultSuccess {
			// Threads already made ready go back to where they were.
			for _, done := range threads[:i] {
				done.machine.ForceTransition(done.machine.Previous())
			}
			p.running.Store(false)
			return api.NewError(api.ErrCodeInvalidTransition, "hierarchy: thread not ready").
				WithContext("id", t.id).WithContext("state", prev.String()).WithContext("result", r.String())
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	p.runMu.Lock()
	p.cancel = cancel
	p.group = g
	p.runMu.Unlock()

	for _, t := range threads {
		g.Go(func() error { return p.run(gctx, t, h) })
	}
	p.log.Info("hierarchy: pool started", "threads", len(threads))
	return nil
}

func (p *Pool) run(ctx context.Context, t *Thread, h Handler) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if p.cfg.NUMAAware && p.affinity != nil {
		cpu := concurrency.CPUFor(t.id)
		if err := p.affinity.Pin(cpu, -1); err != nil {
			// Pin leaves the goroutine locked on failure.
			runtime.UnlockOSThread()
			p.log.Warn("hierarchy: pin failed", "id", t.id, "cpu", cpu, "error", err)
		} else {
			defer func() { _ = p.affinity.Unpin() }()
		}
	}

	if r := t.ChangeState(state.Running); r != state.ResultSuccess {
		return api.NewError(api.ErrCodeInvalidTransition, "hierarchy: thread cannot run").
			WithContext("id", t.id).WithContext("result", r.String())
	}
	defer func() {
		t.ChangeState(state.Stopping)
		t.ChangeState(state.Stopped)
	}()

	for ctx.Err() == nil {
		task, ok := p.dist.Get(t.id)
		if !ok {
			if task, ok = p.dist.Steal(t.id); ok {
				t.stolen.Add(1)
			}
		}
		if !ok {
			select {
			case <-ctx.Done():
			case <-time.After(idleBackoff):
			}
			continue
		}
		p.execute(ctx, t, task, h)
	}
	return nil
}

func (p *Pool) execute(ctx context.Context, t *Thread, task *work.Task, h Handler) {
	var err error
	if h == nil {
		err = p.dist.Execute(task)
	} else if err = h(ctx, t, task); err != nil {
		_ = p.dist.Fail(task, err)
	} else {
		err = p.dist.Complete(task)
	}
	if err != nil {
		t.failed.Add(1)
		p.log.Debug("hierarchy: task failed", "id", t.id, "task", task.ID, "error", err)
		return
	}
	t.completed.Add(1)
}

// WaitIdle blocks until no task is outstanding or ctx is done.
func (p *Pool) WaitIdle(ctx context.Context) error {
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for p.dist.Stats().Pending > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

// Stop asks every runner to finish its current task and exit.
func (p *Pool) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Wait blocks until every runner has exited and returns the first runner
// error. The pool can be started again afterwards.
func (p *Pool) Wait() error {
	p.runMu.Lock()
	g, cancel := p.group, p.cancel
	p.runMu.Unlock()
	if g == nil {
		return nil
	}
	err := g.Wait()
	cancel()
	p.runMu.Lock()
	p.group, p.cancel = nil, nil
	p.runMu.Unlock()
	p.running.Store(false)
	p.log.Info("hierarchy: pool stopped")
	return err
}

// Running reports whether runners are active.
func (p *Pool) Running() bool { return p.running.Load() }

// DistributeWork spreads items over the worker threads with the greedy
// distribution, pairing distribution slot i with the i-th worker in
// geometric order, and queues every item on that worker's distributor slot
// with fn as its function. Nothing is queued when any item cannot be.
func (p *Pool) DistributeWork(items []work.Item, fn work.Func) (*work.Distribution, error) {
	for i, it := range items {
		if p.cfg.NumDimensions > 0 && (it.Dimension < 0 || it.Dimension >= p.cfg.NumDimensions) {
			return nil, api.Invalid("hierarchy: item dimension out of range").
				WithContext("item", i).WithContext("dimension", it.Dimension)
		}
	}
	workers := p.Workers()
	if len(workers) == 0 {
		return nil, api.NewError(api.ErrCodeNotFound, "hierarchy: no worker threads")
	}
	d, err := work.Distribute(items, len(workers))
	if err != nil {
		return nil, err
	}
	batch := make([]work.Assignment, 0, len(items))
	for i, assigned := range d.Assigned {
		for _, it := range assigned {
			batch = append(batch, work.Assignment{Worker: workers[i].id, Item: it})
		}
	}
	if _, err := p.dist.SubmitBatch(batch, fn); err != nil {
		d.Free()
		return nil, err
	}
	p.log.Debug("hierarchy: work distributed", "items", len(items), "workers", len(workers), "max_load", d.MaxLoad())
	return d, nil
}

// Workers returns the non-control threads ordered by position, then id.
func (p *Pool) Workers() []*Thread {
	var out []*Thread
	for _, t := range p.Threads() {
		if t.role != RoleControl {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b *Thread) int {
		return geometry.Compare(a.pos, b.pos)
	})
	return out
}
