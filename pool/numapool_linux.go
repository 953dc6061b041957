//go:build linux

// File: pool/numapool_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux chunk allocator backed by anonymous mmap. Pages are placed on the
// node of the first CPU that touches them, so callers fault chunks in from
// a thread pinned to the target node.

package pool

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/geomesh/internal/concurrency"
)

// mmapAllocator is a NUMA allocator implementation for Linux.
type mmapAllocator struct{}

// createNUMAAllocator returns the NUMA allocator for Linux.
func createNUMAAllocator() ChunkAllocator {
	return mmapAllocator{}
}

func (mmapAllocator) Alloc(size int, _ int) ([]byte, error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("pool: mmap %d bytes: %w", size, err)
	}
	return buf, nil
}

func (mmapAllocator) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	_ = unix.Munmap(buf)
}

func (mmapAllocator) Nodes() (int, error) {
	return concurrency.NUMANodes(), nil
}
