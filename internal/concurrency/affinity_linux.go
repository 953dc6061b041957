//go:build linux

// File: internal/concurrency/affinity_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux affinity through sched_setaffinity and sysfs topology.

package concurrency

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const sysNodeDir = "/sys/devices/system/node"

func platformPinCurrentThread(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}

func platformUnpinCurrentThread() error {
	var set unix.CPUSet
	set.Zero()
	for i := 0; i < NumCPUs(); i++ {
		set.Set(i)
	}
	return unix.SchedSetaffinity(0, &set)
}

func platformNUMANodes() int {
	matches, err := filepath.Glob(filepath.Join(sysNodeDir, "node[0-9]*"))
	if err != nil {
		return 1
	}
	return len(matches)
}

func platformPreferredCPUID(numaNode int) int {
	raw, err := os.ReadFile(filepath.Join(sysNodeDir, "node"+strconv.Itoa(numaNode), "cpulist"))
	if err != nil {
		return 0
	}
	return firstCPU(string(raw))
}

// firstCPU parses the leading index of a sysfs cpulist such as "0-3,8-11".
func firstCPU(list string) int {
	list = strings.TrimSpace(list)
	if i := strings.IndexAny(list, ",-"); i >= 0 {
		list = list[:i]
	}
	n, err := strconv.Atoi(list)
	if err != nil {
		return 0
	}
	return n
}

// CurrentCPUs returns the CPUs the calling thread may run on.
func CurrentCPUs() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, err
	}
	out := make([]int, 0, set.Count())
	for i := 0; i < NumCPUs(); i++ {
		if set.IsSet(i) {
			out = append(out, i)
		}
	}
	return out, nil
}
