// File: internal/concurrency/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-platform CPU and NUMA affinity management.

package concurrency

import (
	"runtime"

	"github.com/momentics/geomesh/api"
)

// NumCPUs returns the number of logical CPUs.
func NumCPUs() int {
	return runtime.NumCPU()
}

// NUMANodes returns the number of NUMA nodes, at least 1.
func NUMANodes() int {
	if n := platformNUMANodes(); n > 0 {
		return n
	}
	return 1
}

// PreferredCPUID returns the first CPU of the given NUMA node, or 0.
func PreferredCPUID(numaNode int) int {
	if numaNode < 0 {
		return 0
	}
	return platformPreferredCPUID(numaNode)
}

// CPUFor spreads slot indices round-robin over the logical CPUs.
func CPUFor(slot int) int {
	n := NumCPUs()
	return ((slot % n) + n) % n
}

// PinCurrentThread locks the calling goroutine to its OS thread and binds
// that thread to cpuID. The goroutine stays locked even when pinning fails.
func PinCurrentThread(cpuID int) error {
	runtime.LockOSThread()
	if cpuID < 0 || cpuID >= NumCPUs() {
		return ErrInvalidCPU
	}
	return platformPinCurrentThread(cpuID)
}

// UnpinCurrentThread restores the full CPU set and unlocks the OS thread.
func UnpinCurrentThread() error {
	defer runtime.UnlockOSThread()
	return platformUnpinCurrentThread()
}

// Affinity binds goroutines to CPUs for callers that take it as a
// dependency.
type Affinity struct{}

// Pin implements api.Affinity. The NUMA node selects the CPU when cpuID is
// negative.
func (Affinity) Pin(cpuID, numaID int) error {
	if cpuID < 0 {
		cpuID = PreferredCPUID(numaID)
	}
	return PinCurrentThread(cpuID)
}

// Unpin implements api.Affinity.
func (Affinity) Unpin() error { return UnpinCurrentThread() }

var _ api.Affinity = Affinity{}
