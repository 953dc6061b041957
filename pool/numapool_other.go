//go:build !linux

// File: pool/numapool_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

// createNUMAAllocator returns nil for unsupported platforms.
func createNUMAAllocator() ChunkAllocator {
	return nil
}
