// File: shm/region.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package shm

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/geomesh/api"
)

// Mode selects the write discipline of a region.
type Mode int

const (
	// ReadOnly rejects every write.
	ReadOnly Mode = iota
	// CopyOnWrite grants in-place writes and counts them as copies.
	CopyOnWrite
	// LockedWrite grants exclusive in-place writes.
	LockedWrite
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case CopyOnWrite:
		return "copy-on-write"
	case LockedWrite:
		return "locked-write"
	}
	return "unknown"
}

// Region is a versioned block of memory shared between goroutines.
//
// CopyOnWrite writes mutate the live buffer; the copies counter is
// bookkeeping only. Readers that need a consistent multi-byte view while
// writers are active should use LockedWrite and coordinate through the
// version.
type Region struct {
	mu      sync.Mutex
	buf     atomic.Pointer[[]byte]
	mode    Mode
	writer  atomic.Uint64
	tickets uint64
	closed  atomic.Bool

	version atomic.Uint64
	readers atomic.Int64
	reads   atomic.Uint64
	writes  atomic.Uint64
	copies  atomic.Uint64
}

// WriteToken identifies one write granted by Write. Only the holder can
// commit it.
type WriteToken uint64

// RegionStats is a snapshot of region counters.
type RegionStats struct {
	Size    int    `yaml:"size"`
	Mode    string `yaml:"mode"`
	Version uint64 `yaml:"version"`
	Readers int64  `yaml:"readers"`
	Reads   uint64 `yaml:"reads"`
	Writes  uint64 `yaml:"writes"`
	Copies  uint64 `yaml:"copies"`
}

// NewRegion allocates a zeroed region of size bytes.
func NewRegion(size int, mode Mode) (*Region, error) {
	if size <= 0 {
		return nil, api.Invalid("shm: region size must be positive").WithContext("size", size)
	}
	if mode < ReadOnly || mode > LockedWrite {
		return nil, api.Invalid("shm: unknown mode").WithContext("mode", int(mode))
	}
	r := &Region{mode: mode}
	b := make([]byte, size)
	r.buf.Store(&b)
	return r, nil
}

// Mode returns the write discipline.
func (r *Region) Mode() Mode { return r.mode }

// Size returns the current buffer size.
func (r *Region) Size() int {
	if b := r.buf.Load(); b != nil {
		return len(*b)
	}
	return 0
}

// Read registers a reader and returns the live buffer. The caller must
// treat it as read-only and call ReleaseRead when done. It returns nil
// once the region is closed.
func (r *Region) Read() []byte {
	b := r.buf.Load()
	if b == nil {
		return nil
	}
	r.readers.Add(1)
	r.reads.Add(1)
	return *b
}

// ReleaseRead unregisters a reader. Unbalanced calls are ignored.
func (r *Region) ReleaseRead() {
	for {
		n := r.readers.Load()
		if n <= 0 || r.readers.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// Write blocks until no other writer is active and returns the mutable
// buffer with the token that commits it. ReadOnly regions always fail.
func (r *Region) Write() ([]byte, WriteToken, error) {
	if r.mode == ReadOnly {
		return nil, 0, api.NewError(api.ErrCodeReadOnly, "shm: region is read-only")
	}
	r.mu.Lock()
	b := r.buf.Load()
	if b == nil {
		r.mu.Unlock()
		return nil, 0, api.NewError(api.ErrCodeClosed, "shm: region is closed")
	}
	r.tickets++
	tok := WriteToken(r.tickets)
	r.writer.Store(uint64(tok))
	if r.mode == CopyOnWrite {
		r.copies.Add(1)
	}
	return *b, tok, nil
}

// ReleaseWrite commits the write identified by tok and bumps the version by
// one. A token that is not the active one is rejected.
func (r *Region) ReleaseWrite(tok WriteToken) error {
	if !r.endWrite(tok) {
		return api.Invalid("shm: write token is not active").WithContext("token", uint64(tok))
	}
	r.version.Add(1)
	r.writes.Add(1)
	r.mu.Unlock()
	return nil
}

// endWrite retires tok. On success the caller owns r.mu and must unlock it.
func (r *Region) endWrite(tok WriteToken) bool {
	return tok != 0 && r.writer.CompareAndSwap(uint64(tok), 0)
}

// abortWrite retires tok without committing.
func (r *Region) abortWrite(tok WriteToken) {
	if r.endWrite(tok) {
		r.mu.Unlock()
	}
}

// Update runs fn on the mutable buffer and commits the write.
func (r *Region) Update(fn func(buf []byte)) error {
	b, tok, err := r.Write()
	if err != nil {
		return err
	}
	fn(b)
	return r.ReleaseWrite(tok)
}

// WriteAt copies p into the region at off as one committed write. Nothing
// is written when the range does not fit the buffer held by the writer.
func (r *Region) WriteAt(p []byte, off int) error {
	buf, tok, err := r.Write()
	if err != nil {
		return err
	}
	if off < 0 || off+len(p) > len(buf) {
		r.abortWrite(tok)
		return api.Invalid("shm: write out of range").
			WithContext("offset", off).WithContext("len", len(p))
	}
	copy(buf[off:], p)
	return r.ReleaseWrite(tok)
}

// ReadAt copies len(p) bytes at off into p.
func (r *Region) ReadAt(p []byte, off int) error {
	buf := r.Read()
	defer r.ReleaseRead()
	if buf == nil {
		return api.NewError(api.ErrCodeClosed, "shm: region is closed")
	}
	if off < 0 || off+len(p) > len(buf) {
		return api.Invalid("shm: read out of range").
			WithContext("offset", off).WithContext("len", len(p))
	}
	copy(p, buf[off:])
	return nil
}

// Resize reallocates the buffer, keeping the common prefix. Mode and version
// are unchanged.
func (r *Region) Resize(size int) error {
	if size <= 0 {
		return api.Invalid("shm: region size must be positive").WithContext("size", size)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.buf.Load()
	if old == nil {
		return api.NewError(api.ErrCodeClosed, "shm: region is closed")
	}
	b := make([]byte, size)
	copy(b, *old)
	r.buf.Store(&b)
	return nil
}

// Version returns the number of committed writes.
func (r *Region) Version() uint64 { return r.version.Load() }

// IsModified reports whether a write was committed after baseline was read.
func (r *Region) IsModified(baseline uint64) bool { return r.version.Load() != baseline }

// Validate checks the internal consistency of the region.
func (r *Region) Validate() bool {
	b := r.buf.Load()
	if b == nil || len(*b) == 0 {
		return false
	}
	if r.mode < ReadOnly || r.mode > LockedWrite {
		return false
	}
	w := r.writes.Load()
	return r.readers.Load() >= 0 && r.version.Load() >= w
}

// Stats returns a snapshot of the region counters.
func (r *Region) Stats() RegionStats {
	return RegionStats{
		Size:    r.Size(),
		Mode:    r.mode.String(),
		Version: r.version.Load(),
		Readers: r.readers.Load(),
		Reads:   r.reads.Load(),
		Writes:  r.writes.Load(),
		Copies:  r.copies.Load(),
	}
}

// Close releases the buffer. It waits for an active writer to finish.
func (r *Region) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return api.NewError(api.ErrCodeClosed, "shm: region already closed")
	}
	r.mu.Lock()
	r.buf.Store(nil)
	r.mu.Unlock()
	return nil
}
