// File: api/affinity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// CPU/NUMA affinity contract used by the thread runners.

package api

// Affinity controls execution on particular CPUs/NUMA nodes.
type Affinity interface {
	// Pin locks the calling goroutine to its OS thread and binds that thread
	// to cpuID. numaID is advisory.
	Pin(cpuID int, numaID int) error
	// Unpin removes the CPU mask set by Pin.
	Unpin() error
}
