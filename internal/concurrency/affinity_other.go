//go:build !linux

// File: internal/concurrency/affinity_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fallback for platforms without thread affinity support.

package concurrency

func platformPinCurrentThread(int) error { return ErrAffinityNotSupported }
func platformUnpinCurrentThread() error  { return nil }
func platformNUMANodes() int             { return 1 }
func platformPreferredCPUID(int) int     { return 0 }

// CurrentCPUs is not available on this platform.
func CurrentCPUs() ([]int, error) { return nil, ErrAffinityNotSupported }
