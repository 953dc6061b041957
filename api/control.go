// File: api/control.go
// Package api defines Control interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Control manages dynamic config and debug probes of a running pool.
type Control interface {
	GetConfig() map[string]any
	SetConfig(cfg map[string]any) error
	OnReload(fn func())
	RegisterDebugProbe(name string, fn func() any)
}

// StatsSource is anything that can be polled for a flat statistics snapshot.
type StatsSource interface {
	StatsMap() map[string]any
}
