// File: pool/numapool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral NUMA-aware chunk pool. Concrete allocators are selected
// through the platform-specific factory in separate files.

package pool

import (
	"sync/atomic"

	"github.com/momentics/geomesh/api"
	"github.com/momentics/geomesh/internal/concurrency"
)

const defaultPoolCapacity = 256

// ChunkAllocator defines interface for NUMA-aware memory allocators.
type ChunkAllocator interface {
	Alloc(size int, node int) ([]byte, error)
	Free([]byte)
	Nodes() (int, error)
}

// heapAllocator hands out GC-managed slices.
type heapAllocator struct{}

func (heapAllocator) Alloc(size int, _ int) ([]byte, error) { return make([]byte, size), nil }
func (heapAllocator) Free([]byte)                           {}
func (heapAllocator) Nodes() (int, error)                   { return 1, nil }

// ChunkPool recycles fixed-size zeroed chunks for one NUMA node.
type ChunkPool struct {
	alloc ChunkAllocator
	size  int
	node  int
	numa  bool

	// Free list; chunks beyond its capacity go back to the allocator.
	free *concurrency.LockFreeQueue[[]byte]

	allocs   atomic.Uint64
	reuses   atomic.Uint64
	releases atomic.Uint64
	inUse    atomic.Int64
}

// ChunkPoolStats is a snapshot of pool counters.
type ChunkPoolStats struct {
	ChunkSize int
	Node      int
	NUMA      bool
	Allocs    uint64
	Reuses    uint64
	Releases  uint64
	InUse     int64
}

// NewChunkPool creates a pool of size-byte chunks for node. When numaAware is
// false, or the platform has no NUMA allocator, chunks come from the Go heap.
func NewChunkPool(size, node int, numaAware bool) (*ChunkPool, error) {
	if size <= 0 {
		return nil, api.Invalid("pool: chunk size %d must be positive", size)
	}
	var alloc ChunkAllocator = heapAllocator{}
	numa := false
	if numaAware {
		if na := createNUMAAllocator(); na != nil {
			alloc, numa = na, true
		}
	}
	return &ChunkPool{
		alloc: alloc,
		size:  size,
		node:  node,
		numa:  numa,
		free:  concurrency.NewLockFreeQueue[[]byte](defaultPoolCapacity),
	}, nil
}

// ChunkSize returns the size of every chunk.
func (p *ChunkPool) ChunkSize() int { return p.size }

// Node returns the NUMA node the pool allocates for.
func (p *ChunkPool) Node() int { return p.node }

// Get returns a zeroed chunk.
func (p *ChunkPool) Get() ([]byte, error) {
	if buf, ok := p.free.Dequeue(); ok {
		p.reuses.Add(1)
		p.inUse.Add(1)
		return buf, nil
	}
	buf, err := p.alloc.Alloc(p.size, p.node)
	if err != nil {
		return nil, err
	}
	p.allocs.Add(1)
	p.inUse.Add(1)
	return buf, nil
}

// Put returns a chunk obtained from Get. Foreign slices are ignored.
func (p *ChunkPool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	clear(buf)
	p.inUse.Add(-1)
	if p.free.Enqueue(buf) {
		return
	}
	p.releases.Add(1)
	p.alloc.Free(buf)
}

// Close releases every pooled chunk back to the allocator.
func (p *ChunkPool) Close() {
	for {
		buf, ok := p.free.Dequeue()
		if !ok {
			return
		}
		p.releases.Add(1)
		p.alloc.Free(buf)
	}
}

// Stats returns current counters.
func (p *ChunkPool) Stats() ChunkPoolStats {
	return ChunkPoolStats{
		ChunkSize: p.size,
		Node:      p.node,
		NUMA:      p.numa,
		Allocs:    p.allocs.Load(),
		Reuses:    p.reuses.Load(),
		Releases:  p.releases.Load(),
		InUse:     p.inUse.Load(),
	}
}
