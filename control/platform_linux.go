//go:build linux

// File: control/platform_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux-specific debug probes.

package control

import (
	"github.com/momentics/geomesh/internal/concurrency"
)

// RegisterPlatformProbes sets Linux-specific debug metrics.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return concurrency.NumCPUs()
	})
	dp.RegisterProbe("platform.numa_nodes", func() any {
		return concurrency.NUMANodes()
	})
	dp.RegisterProbe("platform.affinity", func() any {
		cpus, err := concurrency.CurrentCPUs()
		if err != nil {
			return err.Error()
		}
		return cpus
	})
}
