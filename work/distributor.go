// File: work/distributor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package work

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/geomesh/api"
	"github.com/momentics/geomesh/internal/concurrency"
)

const (
	// DefaultCapacity bounds outstanding tasks when NewDistributor gets 0.
	DefaultCapacity = 4096
	// balanceThreshold is the queue length gap that triggers Balance.
	balanceThreshold = 10
	// balanceBatch caps the tasks moved by one Balance call.
	balanceBatch = 10
)

// Status is the lifecycle stage of a task.
type Status int32

const (
	StatusPending Status = iota
	StatusAssigned
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAssigned:
		return "assigned"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Func processes one item.
type Func func(Item) error

// Task is an item queued in a Distributor.
type Task struct {
	ID    uint64
	Item  Item
	Fn    Func
	Owner int // -1 for global tasks
	Err   error

	worker   atomic.Int64
	status   atomic.Int32
	queued   time.Time
	started  time.Time
	finished time.Time
}

// Status returns the task stage.
func (t *Task) Status() Status { return Status(t.status.Load()) }

// Worker returns the worker that took the task, or -1.
func (t *Task) Worker() int { return int(t.worker.Load()) }

// Elapsed returns the processing time of a finished task.
func (t *Task) Elapsed() time.Duration { return t.finished.Sub(t.started) }

type workerQueue struct {
	mu    sync.Mutex
	tasks *queue.Queue

	received  atomic.Uint64
	completed atomic.Uint64
	stolen    atomic.Uint64
	robbed    atomic.Uint64
	busy      atomic.Int64
}

func (w *workerQueue) push(t *Task) {
	w.mu.Lock()
	w.tasks.Add(t)
	w.mu.Unlock()
}

func (w *workerQueue) pop() *Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tasks.Length() == 0 {
		return nil
	}
	return w.tasks.Remove().(*Task)
}

func (w *workerQueue) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tasks.Length()
}

// Distributor runs queued work for a fixed set of workers.
type Distributor struct {
	workers   []*workerQueue
	global    *concurrency.LockFreeQueue[*Task]
	globalLen atomic.Int64
	capacity  int64
	pending   atomic.Int64
	nextID    atomic.Uint64

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	stolen    atomic.Uint64
}

// WorkerStats is a snapshot of one worker's counters.
type WorkerStats struct {
	Worker    int           `yaml:"worker"`
	Queued    int           `yaml:"queued"`
	Received  uint64        `yaml:"received"`
	Completed uint64        `yaml:"completed"`
	Stolen    uint64        `yaml:"stolen"`
	AvgTime   time.Duration `yaml:"avg_time"`
}

// Stats is a snapshot of distributor counters.
type Stats struct {
	Workers   int    `yaml:"workers"`
	Submitted uint64 `yaml:"submitted"`
	Completed uint64 `yaml:"completed"`
	Failed    uint64 `yaml:"failed"`
	Stolen    uint64 `yaml:"stolen"`
	Pending   int64  `yaml:"pending"`
	Global    int64  `yaml:"global_queue"`
	TotalLoad int    `yaml:"total_load"`
}

// NewDistributor creates a distributor for numWorkers workers with at most
// capacity outstanding tasks.
func NewDistributor(numWorkers, capacity int) (*Distributor, error) {
	if numWorkers <= 0 {
		return nil, api.Invalid("work: worker count must be positive").WithContext("workers", numWorkers)
	}
	if capacity < 0 {
		return nil, api.Invalid("work: negative capacity").WithContext("capacity", capacity)
	}
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	d := &Distributor{
		workers:  make([]*workerQueue, numWorkers),
		global:   concurrency.NewLockFreeQueue[*Task](capacity),
		capacity: int64(capacity),
	}
	for i := range d.workers {
		d.workers[i] = &workerQueue{tasks: queue.New()}
	}
	return d, nil
}

// NumWorkers returns the worker count.
func (d *Distributor) NumWorkers() int { return len(d.workers) }

func (d *Distributor) reserve(n int64) error {
	if d.pending.Add(n) > d.capacity {
		d.pending.Add(-n)
		return api.Full("work: too many outstanding tasks").
			WithContext("capacity", d.capacity).WithContext("requested", n)
	}
	return nil
}

func (d *Distributor) newTask(item Item, fn Func, owner int) *Task {
	t := &Task{ID: d.nextID.Add(1), Item: item, Fn: fn, Owner: owner, queued: time.Now()}
	t.worker.Store(-1)
	return t
}

func (d *Distributor) worker(id int) (*workerQueue, error) {
	if id < 0 || id >= len(d.workers) {
		return nil, api.Invalid("work: worker out of range").WithContext("worker", id)
	}
	return d.workers[id], nil
}

// Submit queues item on worker's local queue.
func (d *Distributor) Submit(worker int, item Item, fn Func) (*Task, error) {
	w, err := d.worker(worker)
	if err != nil {
		return nil, err
	}
	if err := d.reserve(1); err != nil {
		return nil, err
	}
	t := d.newTask(item, fn, worker)
	w.push(t)
	d.submitted.Add(1)
	return t, nil
}

// Assignment pairs an item with the worker whose local queue receives it.
type Assignment struct {
	Worker int
	Item   Item
}

// SubmitBatch queues every assignment or none of them: workers are
// validated and capacity for the whole batch is reserved before anything
// is queued.
func (d *Distributor) SubmitBatch(batch []Assignment, fn Func) ([]*Task, error) {
	for _, a := range batch {
		if _, err := d.worker(a.Worker); err != nil {
			return nil, err
		}
	}
	if len(batch) == 0 {
		return nil, nil
	}
	if err := d.reserve(int64(len(batch))); err != nil {
		return nil, err
	}
	tasks := make([]*Task, len(batch))
	for i, a := range batch {
		tasks[i] = d.newTask(a.Item, fn, a.Worker)
		d.workers[a.Worker].push(tasks[i])
	}
	d.submitted.Add(uint64(len(batch)))
	return tasks, nil
}

// SubmitGlobal queues item on the shared queue any worker may take from.
func (d *Distributor) SubmitGlobal(item Item, fn Func) (*Task, error) {
	if err := d.reserve(1); err != nil {
		return nil, err
	}
	t := d.newTask(item, fn, -1)
	if !d.global.Enqueue(t) {
		d.pending.Add(-1)
		return nil, api.Full("work: global queue full")
	}
	d.globalLen.Add(1)
	d.submitted.Add(1)
	return t, nil
}

// Get takes the next task for worker, trying its local queue before the
// global one.
func (d *Distributor) Get(worker int) (*Task, bool) {
	w, err := d.worker(worker)
	if err != nil {
		return nil, false
	}
	t := w.pop()
	if t == nil {
		var ok bool
		if t, ok = d.global.Dequeue(); !ok {
			return nil, false
		}
		d.globalLen.Add(-1)
	}
	d.assign(t, worker)
	w.received.Add(1)
	return t, true
}

func (d *Distributor) assign(t *Task, worker int) {
	t.worker.Store(int64(worker))
	t.started = time.Now()
	t.status.Store(int32(StatusAssigned))
}

// Steal takes a task from the most loaded worker on behalf of thief.
func (d *Distributor) Steal(thief int) (*Task, bool) {
	tw, err := d.worker(thief)
	if err != nil {
		return nil, false
	}
	victim := d.MostLoaded()
	if victim == thief {
		return nil, false
	}
	vw := d.workers[victim]
	t := vw.pop()
	if t == nil {
		return nil, false
	}
	d.assign(t, thief)
	tw.stolen.Add(1)
	vw.robbed.Add(1)
	d.stolen.Add(1)
	return t, true
}

func (d *Distributor) finish(t *Task, st Status) error {
	if t == nil {
		return api.Invalid("work: nil task")
	}
	if !t.status.CompareAndSwap(int32(StatusAssigned), int32(st)) {
		return api.Invalid("work: task is not assigned").WithContext("task", t.ID).WithContext("status", t.Status().String())
	}
	t.finished = time.Now()
	d.pending.Add(-1)
	return nil
}

// Complete marks an assigned task as done.
func (d *Distributor) Complete(t *Task) error {
	if err := d.finish(t, StatusCompleted); err != nil {
		return err
	}
	if w, err := d.worker(t.Worker()); err == nil {
		w.completed.Add(1)
		w.busy.Add(int64(t.Elapsed()))
	}
	d.completed.Add(1)
	return nil
}

// Fail marks an assigned task as failed with cause.
func (d *Distributor) Fail(t *Task, cause error) error {
	if err := d.finish(t, StatusFailed); err != nil {
		return err
	}
	t.Err = cause
	d.failed.Add(1)
	return nil
}

// Execute runs the task function, then completes or fails the task. A task
// without a function completes immediately.
func (d *Distributor) Execute(t *Task) error {
	if t == nil {
		return api.Invalid("work: nil task")
	}
	var runErr error
	if t.Fn != nil {
		runErr = t.Fn(t.Item)
	}
	if runErr != nil {
		if err := d.Fail(t, runErr); err != nil {
			return err
		}
		return runErr
	}
	return d.Complete(t)
}

// Load returns the number of tasks queued locally for worker.
func (d *Distributor) Load(worker int) int {
	w, err := d.worker(worker)
	if err != nil {
		return 0
	}
	return w.len()
}

// TotalLoad returns every queued task, global queue included.
func (d *Distributor) TotalLoad() int {
	total := int(d.globalLen.Load())
	for i := range d.workers {
		total += d.workers[i].len()
	}
	return total
}

// LeastLoaded returns the worker with the shortest local queue.
func (d *Distributor) LeastLoaded() int {
	best, bestLoad := 0, d.Load(0)
	for i := 1; i < len(d.workers); i++ {
		if l := d.Load(i); l < bestLoad {
			best, bestLoad = i, l
		}
	}
	return best
}

// MostLoaded returns the worker with the longest local queue.
func (d *Distributor) MostLoaded() int {
	best, bestLoad := 0, d.Load(0)
	for i := 1; i < len(d.workers); i++ {
		if l := d.Load(i); l > bestLoad {
			best, bestLoad = i, l
		}
	}
	return best
}

// Balance moves queued tasks from the most to the least loaded worker when
// their queue lengths differ by more than ten. It returns the number moved.
func (d *Distributor) Balance() int {
	most, least := d.MostLoaded(), d.LeastLoaded()
	if most == least {
		return 0
	}
	gap := d.Load(most) - d.Load(least)
	if gap <= balanceThreshold {
		return 0
	}
	moved := 0
	for moved < gap/2 && moved < balanceBatch {
		t := d.workers[most].pop()
		if t == nil {
			break
		}
		d.workers[least].push(t)
		d.workers[most].robbed.Add(1)
		moved++
	}
	return moved
}

// WorkerStats returns the counters of one worker.
func (d *Distributor) WorkerStats(worker int) (WorkerStats, error) {
	w, err := d.worker(worker)
	if err != nil {
		return WorkerStats{}, err
	}
	st := WorkerStats{
		Worker:    worker,
		Queued:    w.len(),
		Received:  w.received.Load(),
		Completed: w.completed.Load(),
		Stolen:    w.stolen.Load(),
	}
	if st.Completed > 0 {
		st.AvgTime = time.Duration(w.busy.Load() / int64(st.Completed))
	}
	return st, nil
}

// Stats returns distributor-wide counters.
func (d *Distributor) Stats() Stats {
	return Stats{
		Workers:   len(d.workers),
		Submitted: d.submitted.Load(),
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
		Stolen:    d.stolen.Load(),
		Pending:   d.pending.Load(),
		Global:    d.globalLen.Load(),
		TotalLoad: d.TotalLoad(),
	}
}
