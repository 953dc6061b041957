// File: boundary/boundary.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package boundary

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/momentics/geomesh/api"
)

// DefaultSize is the buffer capacity used when New is given size 0.
const DefaultSize = 4096

type sideCounters struct {
	reads  atomic.Uint64
	writes atomic.Uint64
	_      cpu.CacheLinePad
}

// Boundary is the shared contact buffer between sphere A and sphere B.
//
// Read does not synchronize with Write: a reader racing a writer may observe
// a torn or stale multi-byte value. Word-sized payloads that must not tear go
// through AtomicExchange and AtomicLoad. Version conflicts observed by Read
// are counted for diagnostics.
type Boundary struct {
	sphereA, sphereB int

	words []uint64
	mem   []byte

	mu      sync.Mutex
	version atomic.Uint64
	_       cpu.CacheLinePad
	sides   [2]sideCounters

	accesses      atomic.Uint64
	invalidations atomic.Uint64
	conflicts     atomic.Uint64
	closed        atomic.Bool
}

// Stats is a snapshot of boundary counters.
type Stats struct {
	SphereA       int    `yaml:"sphere_a"`
	SphereB       int    `yaml:"sphere_b"`
	Size          int    `yaml:"size"`
	Version       uint64 `yaml:"version"`
	ReadsA        uint64 `yaml:"reads_a"`
	ReadsB        uint64 `yaml:"reads_b"`
	WritesA       uint64 `yaml:"writes_a"`
	WritesB       uint64 `yaml:"writes_b"`
	Accesses      uint64 `yaml:"total_accesses"`
	Invalidations uint64 `yaml:"cache_invalidations"`
	Conflicts     uint64 `yaml:"version_conflicts"`
}

// New creates a zeroed boundary between two distinct non-negative sphere
// ids. A size of 0 selects DefaultSize. The buffer is 8-byte aligned.
func New(sphereA, sphereB, size int) (*Boundary, error) {
	if sphereA < 0 || sphereB < 0 || sphereA == sphereB {
		return nil, api.Invalid("boundary: spheres must be distinct and non-negative").
			WithContext("a", sphereA).WithContext("b", sphereB)
	}
	if size < 0 {
		return nil, api.Invalid("boundary: negative size").WithContext("size", size)
	}
	if size == 0 {
		size = DefaultSize
	}
	words := make([]uint64, (size+7)/8)
	return &Boundary{
		sphereA: sphereA,
		sphereB: sphereB,
		words:   words,
		mem:     unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size),
	}, nil
}

// Spheres returns the two registered sides.
func (b *Boundary) Spheres() (int, int) { return b.sphereA, b.sphereB }

// Size returns the buffer capacity.
func (b *Boundary) Size() int { return len(b.mem) }

// Other returns the opposite side of sphere, or -1 when sphere is not a side.
func (b *Boundary) Other(sphere int) int {
	switch sphere {
	case b.sphereA:
		return b.sphereB
	case b.sphereB:
		return b.sphereA
	}
	return -1
}

func (b *Boundary) side(sphere int) (int, error) {
	if b.closed.Load() {
		return 0, api.NewError(api.ErrCodeClosed, "boundary: destroyed")
	}
	switch sphere {
	case b.sphereA:
		return 0, nil
	case b.sphereB:
		return 1, nil
	}
	return 0, api.Invalid("boundary: sphere is not a side").WithContext("sphere", sphere)
}

func (b *Boundary) bounds(off, n int) error {
	if off < 0 || n < 0 || off+n > len(b.mem) {
		return api.Invalid("boundary: range exceeds capacity").
			WithContext("offset", off).WithContext("len", n).WithContext("size", len(b.mem))
	}
	return nil
}

// Read copies len(p) bytes at off into p without taking the write lock.
func (b *Boundary) Read(sphere, off int, p []byte) (int, error) {
	s, err := b.side(sphere)
	if err != nil {
		return 0, err
	}
	if err := b.bounds(off, len(p)); err != nil {
		return 0, err
	}
	before := b.version.Load()
	n := copy(p, b.mem[off:off+len(p)])
	if b.version.Load() != before {
		b.conflicts.Add(1)
	}
	b.sides[s].reads.Add(1)
	b.accesses.Add(1)
	return n, nil
}

// Write copies p into the buffer at off under the write lock and bumps the
// version by one. Out-of-range writes change nothing.
func (b *Boundary) Write(sphere, off int, p []byte) (int, error) {
	s, err := b.side(sphere)
	if err != nil {
		return 0, err
	}
	if err := b.bounds(off, len(p)); err != nil {
		return 0, err
	}
	b.mu.Lock()
	n := copy(b.mem[off:], p)
	b.version.Add(1)
	b.mu.Unlock()
	b.sides[s].writes.Add(1)
	b.accesses.Add(1)
	return n, nil
}

// AtomicExchange stores value at off and returns the previous value. Only
// sizes 4 and 8 are supported and off must be a multiple of size.
func (b *Boundary) AtomicExchange(sphere, off int, value uint64, size int) (uint64, error) {
	s, err := b.side(sphere)
	if err != nil {
		return 0, err
	}
	if err := b.word(off, size); err != nil {
		return 0, err
	}
	var old uint64
	b.mu.Lock()
	if size == 4 {
		old = uint64(atomic.SwapUint32((*uint32)(unsafe.Pointer(&b.mem[off])), uint32(value)))
	} else {
		old = atomic.SwapUint64((*uint64)(unsafe.Pointer(&b.mem[off])), value)
	}
	b.version.Add(1)
	b.invalidations.Add(1)
	b.mu.Unlock()
	b.sides[s].writes.Add(1)
	b.accesses.Add(1)
	return old, nil
}

// AtomicLoad reads a 4- or 8-byte word at off without tearing.
func (b *Boundary) AtomicLoad(sphere, off, size int) (uint64, error) {
	s, err := b.side(sphere)
	if err != nil {
		return 0, err
	}
	if err := b.word(off, size); err != nil {
		return 0, err
	}
	var v uint64
	if size == 4 {
		v = uint64(atomic.LoadUint32((*uint32)(unsafe.Pointer(&b.mem[off]))))
	} else {
		v = atomic.LoadUint64((*uint64)(unsafe.Pointer(&b.mem[off])))
	}
	b.sides[s].reads.Add(1)
	b.accesses.Add(1)
	return v, nil
}

func (b *Boundary) word(off, size int) error {
	if size != 4 && size != 8 {
		return api.NewError(api.ErrCodeNotSupported, "boundary: atomic size must be 4 or 8").
			WithContext("size", size)
	}
	if err := b.bounds(off, size); err != nil {
		return err
	}
	if off%size != 0 {
		return api.Invalid("boundary: unaligned atomic offset").WithContext("offset", off)
	}
	return nil
}

// Version returns the current version.
func (b *Boundary) Version() uint64 { return b.version.Load() }

// InvalidateCache bumps the version without touching the buffer.
func (b *Boundary) InvalidateCache() {
	b.version.Add(1)
	b.invalidations.Add(1)
}

// CheckVersion reports whether v is still the current version.
func (b *Boundary) CheckVersion(v uint64) bool { return b.version.Load() == v }

// Valid reports whether the boundary is usable.
func (b *Boundary) Valid() bool {
	return !b.closed.Load() && len(b.mem) > 0 &&
		b.sphereA >= 0 && b.sphereB >= 0 && b.sphereA != b.sphereB
}

// Stats returns a snapshot of the counters.
func (b *Boundary) Stats() Stats {
	return Stats{
		SphereA:       b.sphereA,
		SphereB:       b.sphereB,
		Size:          len(b.mem),
		Version:       b.version.Load(),
		ReadsA:        b.sides[0].reads.Load(),
		ReadsB:        b.sides[1].reads.Load(),
		WritesA:       b.sides[0].writes.Load(),
		WritesB:       b.sides[1].writes.Load(),
		Accesses:      b.accesses.Load(),
		Invalidations: b.invalidations.Load(),
		Conflicts:     b.conflicts.Load(),
	}
}

// ResetStats zeroes the access counters. The version is kept.
func (b *Boundary) ResetStats() {
	for i := range b.sides {
		b.sides[i].reads.Store(0)
		b.sides[i].writes.Store(0)
	}
	b.accesses.Store(0)
	b.invalidations.Store(0)
	b.conflicts.Store(0)
}

// Destroy makes every further access fail.
func (b *Boundary) Destroy() error {
	if !b.closed.CompareAndSwap(false, true) {
		return api.NewError(api.ErrCodeClosed, "boundary: already destroyed")
	}
	return nil
}
