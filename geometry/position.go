// File: geometry/position.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package geometry

import (
	"fmt"
	"math"
)

const (
	// ClockPositions is the number of points on the clock ring.
	ClockPositions = 12
	// Rings is the number of concentric rings of the lattice.
	Rings = 4
	// NumLayers is the number of magnitude bands.
	NumLayers = 8
	// DegreesPerPosition is the angular step between adjacent clock points.
	DegreesPerPosition = 30.0
	// MagnitudeUnit weighs one unit of magnitude difference in Distance.
	MagnitudeUnit = 12.0
)

// layerBounds are the exclusive upper bounds of layers 0..5. Every int64 at or
// above the last bound lands in layer 6; layer 7 (>= 10^21) cannot be reached
// with 64-bit magnitudes.
var layerBounds = [...]int64{
	1_000,
	1_000_000,
	1_000_000_000,
	1_000_000_000_000,
	1_000_000_000_000_000,
	1_000_000_000_000_000_000,
}

// Position is a point of the clock lattice. Angle and layer are derived from
// Index and Magnitude and are never stored.
type Position struct {
	Ring      uint8
	Index     uint8
	Magnitude int64
}

// Angle returns the angular coordinate in degrees.
func (p Position) Angle() float64 { return float64(p.Index) * DegreesPerPosition }

// Layer returns the magnitude band of p.
func (p Position) Layer() uint8 { return LayerOf(p.Magnitude) }

// IsPrime reports whether p sits on one of the prime clock points 1, 5, 7, 11.
func (p Position) IsPrime() bool {
	switch p.Index {
	case 1, 5, 7, 11:
		return true
	}
	return false
}

// IsControl reports whether p is the mesh centre: clock point 0 of the
// innermost ring. Point 0 of an outer ring is an ordinary position.
func (p Position) IsControl() bool { return p.Ring == 0 && p.Index == 0 }

// Validate reports whether every field of p is in range.
func (p Position) Validate() bool {
	return p.Ring < Rings && p.Index < ClockPositions && p.Layer() < NumLayers
}

func (p Position) String() string {
	return fmt.Sprintf("ring=%d pos=%d mag=%d layer=%d", p.Ring, p.Index, p.Magnitude, p.Layer())
}

// Validate is the free-function form of Position.Validate.
func Validate(p Position) bool { return p.Validate() }

// LayerOf selects the magnitude band. Negative magnitudes fall into band 0.
func LayerOf(magnitude int64) uint8 {
	for i, bound := range layerBounds {
		if magnitude < bound {
			return uint8(i)
		}
	}
	return uint8(len(layerBounds))
}

// LayerScale returns the lower magnitude bound of a layer, 10^(3*layer).
func LayerScale(layer uint8) float64 {
	return math.Pow(10, 3*float64(layer))
}

// ShortestPath returns the number of steps between two clock points going the
// short way around. The result is symmetric and lies in [0,6].
func ShortestPath(a, b uint8) uint8 {
	d := a - b
	if a < b {
		d = b - a
	}
	if d > ClockPositions/2 {
		d = ClockPositions - d
	}
	return d
}

// Distance combines the angular and the magnitude separation of two
// positions. The cost does not depend on the size of the magnitudes.
func Distance(p1, p2 Position) float64 {
	angular := float64(ShortestPath(p1.Index, p2.Index)) * DegreesPerPosition
	magnitude := math.Abs(float64(p1.Magnitude)-float64(p2.Magnitude)) * MagnitudeUnit
	return math.Hypot(angular, magnitude)
}

// AngleBetween returns the short angle between two positions in degrees.
func AngleBetween(p1, p2 Position) float64 {
	return float64(ShortestPath(p1.Index, p2.Index)) * DegreesPerPosition
}

// Compare orders positions by magnitude, then by clock index.
func Compare(p1, p2 Position) int {
	switch {
	case p1.Magnitude > p2.Magnitude:
		return 1
	case p1.Magnitude < p2.Magnitude:
		return -1
	case p1.Index > p2.Index:
		return 1
	case p1.Index < p2.Index:
		return -1
	}
	return 0
}
