// File: work/distributor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package work

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/geomesh/api"
)

func newTestDistributor(t *testing.T, workers, capacity int) *Distributor {
	t.Helper()
	d, err := NewDistributor(workers, capacity)
	require.NoError(t, err)
	return d
}

func TestSubmitGetLocalBeforeGlobal(t *testing.T) {
	d := newTestDistributor(t, 2, 16)
	g, err := d.SubmitGlobal(Item{Dimension: 100}, nil)
	require.NoError(t, err)
	l, err := d.Submit(1, Item{Dimension: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, -1, g.Owner)

	got, ok := d.Get(1)
	require.True(t, ok)
	assert.Same(t, l, got)
	assert.Equal(t, StatusAssigned, got.Status())
	assert.Equal(t, 1, got.Worker())

	got, ok = d.Get(1)
	require.True(t, ok)
	assert.Same(t, g, got)

	_, ok = d.Get(1)
	assert.False(t, ok)
	_, ok = d.Get(7)
	assert.False(t, ok)
}

func TestCompleteAndFail(t *testing.T) {
	d := newTestDistributor(t, 1, 16)
	_, err := d.Submit(0, Item{Size: 1}, nil)
	require.NoError(t, err)
	_, err = d.Submit(0, Item{Size: 2}, func(Item) error { return errors.New("boom") })
	require.NoError(t, err)

	t1, _ := d.Get(0)
	require.NoError(t, d.Execute(t1))
	assert.Equal(t, StatusCompleted, t1.Status())
	assert.True(t, errors.Is(d.Complete(t1), api.ErrInvalidArgument))

	t2, _ := d.Get(0)
	err = d.Execute(t2)
	assert.EqualError(t, err, "boom")
	assert.Equal(t, StatusFailed, t2.Status())
	assert.EqualError(t, t2.Err, "boom")

	st := d.Stats()
	assert.Equal(t, uint64(2), st.Submitted)
	assert.Equal(t, uint64(1), st.Completed)
	assert.Equal(t, uint64(1), st.Failed)
	assert.Zero(t, st.Pending)

	ws, err := d.WorkerStats(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ws.Received)
	assert.Equal(t, uint64(1), ws.Completed)
}

func TestCapacityBound(t *testing.T) {
	d := newTestDistributor(t, 1, 2)
	_, err := d.Submit(0, Item{}, nil)
	require.NoError(t, err)
	_, err = d.SubmitGlobal(Item{}, nil)
	require.NoError(t, err)
	_, err = d.Submit(0, Item{}, nil)
	assert.True(t, errors.Is(err, api.ErrCapacityExceeded))
	_, err = d.Submit(3, Item{}, nil)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))

	task, _ := d.Get(0)
	require.NoError(t, d.Complete(task))
	_, err = d.Submit(0, Item{}, nil)
	assert.NoError(t, err)
}

func TestSubmitBatchAllOrNothing(t *testing.T) {
	d := newTestDistributor(t, 2, 3)

	_, err := d.SubmitBatch([]Assignment{{Worker: 0}, {Worker: 2}}, nil)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = d.SubmitBatch([]Assignment{{Worker: 0}, {Worker: 1}, {Worker: 0}, {Worker: 1}}, nil)
	assert.True(t, errors.Is(err, api.ErrCapacityExceeded))
	assert.Zero(t, d.Stats().Pending)
	assert.Zero(t, d.TotalLoad())

	tasks, err := d.SubmitBatch([]Assignment{{Worker: 0, Item: Item{Size: 1}}, {Worker: 1}, {Worker: 0}}, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, 2, d.Load(0))
	assert.Equal(t, 1, d.Load(1))
	assert.Equal(t, uint64(3), d.Stats().Submitted)

	_, err = d.Submit(1, Item{}, nil)
	assert.True(t, errors.Is(err, api.ErrCapacityExceeded))
}

func TestStealFromMostLoaded(t *testing.T) {
	d := newTestDistributor(t, 3, 64)
	for i := 0; i < 4; i++ {
		_, err := d.Submit(2, Item{Dimension: i}, nil)
		require.NoError(t, err)
	}
	_, err := d.Submit(1, Item{Dimension: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, d.MostLoaded())
	assert.Equal(t, 0, d.LeastLoaded())

	task, ok := d.Steal(0)
	require.True(t, ok)
	assert.Equal(t, 0, task.Item.Dimension)
	assert.Equal(t, 0, task.Worker())
	assert.Equal(t, 3, d.Load(2))

	_, ok = d.Steal(2)
	assert.False(t, ok, "the most loaded worker cannot steal from itself")
	assert.Equal(t, uint64(1), d.Stats().Stolen)
	ws, _ := d.WorkerStats(0)
	assert.Equal(t, uint64(1), ws.Stolen)
}

func TestBalance(t *testing.T) {
	d := newTestDistributor(t, 2, 128)
	for i := 0; i < 30; i++ {
		_, err := d.Submit(0, Item{Dimension: i}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 10, d.Balance())
	assert.Equal(t, 20, d.Load(0))
	assert.Equal(t, 10, d.Load(1))
	assert.Equal(t, 0, d.Balance(), "gap of ten does not trigger")
	assert.Equal(t, 30, d.TotalLoad())
}

func TestConcurrentDrain(t *testing.T) {
	const workers, perWorker = 4, 200
	d := newTestDistributor(t, workers, workers*perWorker*2)
	var processed atomic.Int64
	fn := func(Item) error { processed.Add(1); return nil }
	for w := 0; w < workers; w++ {
		for i := 0; i < perWorker; i++ {
			_, err := d.Submit(w, Item{Size: 1}, fn)
			require.NoError(t, err)
			_, err = d.SubmitGlobal(Item{Size: 1}, fn)
			require.NoError(t, err)
		}
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for {
				task, ok := d.Get(w)
				if !ok {
					if task, ok = d.Steal(w); !ok {
						return
					}
				}
				assert.NoError(t, d.Execute(task))
			}
		}(w)
	}
	wg.Wait()
	// stragglers left by a racing steal attempt are drained here
	for w := 0; w < workers; w++ {
		for task, ok := d.Get(w); ok; task, ok = d.Get(w) {
			require.NoError(t, d.Execute(task))
		}
	}
	assert.Equal(t, int64(2*workers*perWorker), processed.Load())
	assert.Zero(t, d.Stats().Pending)
}

func TestNewDistributorValidation(t *testing.T) {
	_, err := NewDistributor(0, 1)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	_, err = NewDistributor(1, -1)
	assert.True(t, errors.Is(err, api.ErrInvalidArgument))
	d := newTestDistributor(t, 1, 0)
	assert.Equal(t, int64(DefaultCapacity), d.capacity)
}
