// File: work/item.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package work

import (
	"cmp"
	"slices"

	"github.com/momentics/geomesh/api"
)

// Priority orders items for callers that care. Distribution ignores it.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// Item is an opaque unit of work.
type Item struct {
	Layer     uint8
	Dimension int
	Size      uint64
	Priority  Priority
	Data      any
}

// Distribution is the result of Distribute. Release it with Free.
type Distribution struct {
	NumWorkers int
	Loads      []uint64
	Counts     []int
	Assigned   [][]Item
}

// Distribute assigns items greedily: sorted by descending size (stable for
// equal sizes), each goes to the currently least loaded worker, lowest index
// first on ties. The input slice is not modified.
func Distribute(items []Item, numWorkers int) (*Distribution, error) {
	if numWorkers <= 0 {
		return nil, api.Invalid("work: worker count must be positive").WithContext("workers", numWorkers)
	}
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b Item) int { return cmp.Compare(b.Size, a.Size) })

	d := &Distribution{
		NumWorkers: numWorkers,
		Loads:      make([]uint64, numWorkers),
		Counts:     make([]int, numWorkers),
		Assigned:   make([][]Item, numWorkers),
	}
	for _, it := range sorted {
		w := 0
		for i := 1; i < numWorkers; i++ {
			if d.Loads[i] < d.Loads[w] {
				w = i
			}
		}
		d.Assigned[w] = append(d.Assigned[w], it)
		d.Loads[w] += it.Size
		d.Counts[w]++
	}
	return d, nil
}

// MaxLoad returns the largest per-worker load.
func (d *Distribution) MaxLoad() uint64 {
	if d == nil || len(d.Loads) == 0 {
		return 0
	}
	return slices.Max(d.Loads)
}

// Free drops every per-worker slice. Calling it again is a no-op.
func (d *Distribution) Free() {
	if d == nil {
		return
	}
	d.Loads = nil
	d.Counts = nil
	d.Assigned = nil
	d.NumWorkers = 0
}
