// File: hierarchy/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hierarchy

import (
	"log/slog"

	"github.com/momentics/geomesh/api"
	"github.com/momentics/geomesh/boundary"
	"github.com/momentics/geomesh/geometry"
)

const (
	// MaxNeighbors bounds the neighbor list of one thread.
	MaxNeighbors = 12
	// MaxChildren bounds the child list of one thread.
	MaxChildren = 12
	// RegionSize is the size of per-thread local and parent-shared regions.
	RegionSize = 4096
	// MinBoundarySize is the smallest boundary that holds a mailbox header
	// for each direction.
	MinBoundarySize = 2 * mailboxHeader
	// DefaultGlobalRegionSize is the size of the pool-wide region.
	DefaultGlobalRegionSize = 64 << 10

	machineRules     = 32
	machineCallbacks = 16
)

// Config is the mesh configuration of a Pool.
type Config struct {
	MaxThreads    int  `yaml:"max_threads"`
	SymmetryFold  int  `yaml:"symmetry_fold"`
	NumDimensions int  `yaml:"num_dimensions"`
	NUMAAware     bool `yaml:"numa_aware"`

	// Zero values select defaults.
	BoundarySize     int `yaml:"boundary_size"`
	HistoryCapacity  int `yaml:"history_capacity"`
	RainbowCapacity  int `yaml:"rainbow_capacity"`
	GlobalRegionSize int `yaml:"global_region_size"`
	TaskCapacity     int `yaml:"task_capacity"`
}

// DefaultConfig returns a 13-thread mesh: one control thread and a full
// 12-fold ring of workers.
func DefaultConfig() Config {
	return Config{
		MaxThreads:    13,
		SymmetryFold:  geometry.ClockPositions,
		NumDimensions: 13,
	}
}

func (c Config) validate() error {
	if c.MaxThreads <= 0 {
		return api.Invalid("hierarchy: max_threads must be positive").WithContext("max_threads", c.MaxThreads)
	}
	if c.SymmetryFold <= 0 {
		return api.Invalid("hierarchy: symmetry_fold must be positive").WithContext("symmetry_fold", c.SymmetryFold)
	}
	if c.NumDimensions < 0 || c.BoundarySize < 0 || c.HistoryCapacity < 0 ||
		c.RainbowCapacity < 0 || c.GlobalRegionSize < 0 || c.TaskCapacity < 0 {
		return api.Invalid("hierarchy: negative configuration value")
	}
	if c.BoundarySize > 0 && c.BoundarySize < MinBoundarySize {
		return api.Invalid("hierarchy: boundary_size too small").
			WithContext("boundary_size", c.BoundarySize).WithContext("min", MinBoundarySize)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.BoundarySize == 0 {
		c.BoundarySize = boundary.DefaultSize
	}
	if c.RainbowCapacity == 0 {
		c.RainbowCapacity = 1 + 2*c.MaxThreads
	}
	if c.GlobalRegionSize == 0 {
		c.GlobalRegionSize = DefaultGlobalRegionSize
	}
	return c
}

// Option customizes pool construction.
type Option func(*Pool)

// WithLogger sets the structured logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// WithAffinity overrides the CPU binder used by NUMA-aware runners.
func WithAffinity(a api.Affinity) Option {
	return func(p *Pool) {
		p.affinity = a
	}
}
