//go:build !linux

// File: control/platform_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import (
	"github.com/momentics/geomesh/internal/concurrency"
)

// RegisterPlatformProbes sets portable debug metrics.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return concurrency.NumCPUs()
	})
	dp.RegisterProbe("platform.numa_nodes", func() any {
		return 1
	})
}
