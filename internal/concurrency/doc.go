// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives shared by the mesh runtime: CPU/NUMA topology
// discovery and OS thread pinning, plus a bounded lock-free MPMC queue.
//
// Pinning is implemented on Linux through sched_setaffinity; other
// platforms report ErrAffinityNotSupported and run unpinned.
package concurrency
