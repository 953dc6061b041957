// File: pool/arena.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bump allocator over pooled chunks.

package pool

import (
	"sync"

	"github.com/momentics/geomesh/api"
)

const (
	// DefaultAlignment is the alignment of every arena allocation.
	DefaultAlignment = 8
	// DefaultChunkSize is the chunk size used by thread arenas.
	DefaultChunkSize = 64 << 10
)

// Arena hands out aligned slices carved from chunks of a ChunkPool.
// Individual allocations are never freed; Reset and Release recycle the
// chunks as a whole. Requests larger than a chunk get a dedicated heap slice.
type Arena struct {
	mu     sync.Mutex
	chunks *ChunkPool
	blocks [][]byte
	large  int
	cur    []byte
	off    int

	used   uint64
	allocs uint64
	closed bool
}

// ArenaStats is a snapshot of arena usage.
type ArenaStats struct {
	Chunks      int
	Large       int
	Used        uint64
	Capacity    uint64
	Allocations uint64
}

// NewArena creates an empty arena drawing chunks from chunks.
func NewArena(chunks *ChunkPool) *Arena {
	return &Arena{chunks: chunks}
}

func alignUp(n int) int {
	return (n + DefaultAlignment - 1) &^ (DefaultAlignment - 1)
}

// Alloc returns a zeroed slice of exactly size bytes whose start is
// DefaultAlignment aligned.
func (a *Arena) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, api.Invalid("pool: allocation size %d must be positive", size)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, api.ErrClosed
	}

	if size > a.chunks.ChunkSize() {
		a.large++
		a.allocs++
		a.used += uint64(size)
		return make([]byte, size), nil
	}

	off := alignUp(a.off)
	if a.cur == nil || off+size > len(a.cur) {
		chunk, err := a.chunks.Get()
		if err != nil {
			return nil, err
		}
		a.blocks = append(a.blocks, chunk)
		a.cur = chunk
		off = 0
	}
	a.off = off + size
	a.allocs++
	a.used += uint64(size)
	return a.cur[off : off+size : off+size], nil
}

// Reset forgets every allocation, keeping the first chunk for reuse.
// Slices handed out earlier must not be used afterwards.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.blocks) > 1 {
		for _, b := range a.blocks[1:] {
			a.chunks.Put(b)
		}
		a.blocks = a.blocks[:1]
	}
	if len(a.blocks) == 1 {
		clear(a.blocks[0])
		a.cur = a.blocks[0]
	}
	a.off = 0
	a.used = 0
	a.large = 0
}

// Release returns all chunks to the pool and closes the arena.
func (a *Arena) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	for _, b := range a.blocks {
		a.chunks.Put(b)
	}
	a.blocks = nil
	a.cur = nil
	a.off = 0
	a.closed = true
}

// Stats returns current usage.
func (a *Arena) Stats() ArenaStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ArenaStats{
		Chunks:      len(a.blocks),
		Large:       a.large,
		Used:        a.used,
		Capacity:    uint64(len(a.blocks) * a.chunks.ChunkSize()),
		Allocations: a.allocs,
	}
}
