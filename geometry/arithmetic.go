// File: geometry/arithmetic.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package geometry

import "math"

// Triangulate returns the centroid of three positions: the clock index is the
// sum of the indices modulo 12 and the magnitude is the truncated mean.
func Triangulate(p1, p2, p3 Position) Position {
	sum := uint(p1.Index) + uint(p2.Index) + uint(p3.Index)
	return Position{
		Index:     uint8(sum % ClockPositions),
		Magnitude: truncMean(p1.Magnitude, p2.Magnitude, p3.Magnitude),
	}
}

// TriangulateWeighted returns the weighted centroid of three positions.
// It reports false when a weight is negative or not finite, or when the
// weights do not sum to a positive value.
func TriangulateWeighted(p1 Position, w1 float64, p2 Position, w2 float64, p3 Position, w3 float64) (Position, bool) {
	for _, w := range [...]float64{w1, w2, w3} {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return Position{}, false
		}
	}
	total := w1 + w2 + w3
	if total <= 0 {
		return Position{}, false
	}
	idx := (float64(p1.Index)*w1 + float64(p2.Index)*w2 + float64(p3.Index)*w3) / total
	mag := (float64(p1.Magnitude)*w1 + float64(p2.Magnitude)*w2 + float64(p3.Magnitude)*w3) / total
	return Position{
		Index:     uint8(uint(idx) % ClockPositions),
		Magnitude: saturate(mag),
	}, true
}

// Add sums two positions. When the clock indices wrap past 12 one unit is
// carried into the magnitude. The ring of p1 is kept.
func Add(p1, p2 Position) Position {
	sum := uint(p1.Index) + uint(p2.Index)
	mag := p1.Magnitude + p2.Magnitude
	if sum >= ClockPositions {
		mag++
	}
	return Position{Ring: p1.Ring, Index: uint8(sum % ClockPositions), Magnitude: mag}
}

// Subtract is the inverse of Add: Subtract(Add(p, q), q) == p.
func Subtract(p1, p2 Position) Position {
	diff := int(p1.Index) - int(p2.Index)
	mag := p1.Magnitude - p2.Magnitude
	if diff < 0 {
		diff += ClockPositions
		mag--
	}
	return Position{Ring: p1.Ring, Index: uint8(diff), Magnitude: mag}
}

// Scale multiplies a position by an integer scalar, carrying index overflow
// into the magnitude.
func Scale(p Position, k int64) Position {
	kmod := ((k % ClockPositions) + ClockPositions) % ClockPositions
	idx := (int64(p.Index) * kmod) % ClockPositions
	return Position{
		Index:     uint8(idx),
		Magnitude: p.Magnitude*k + (int64(p.Index)*k)/ClockPositions,
	}
}

// Midpoint returns the point halfway between p1 and p2, walking from p1 the
// short way around the ring.
func Midpoint(p1, p2 Position) Position {
	half := int(ShortestPath(p1.Index, p2.Index) / 2)
	forward := (int(p2.Index) - int(p1.Index) + ClockPositions) % ClockPositions
	if forward > ClockPositions/2 {
		half = -half
	}
	idx := (int(p1.Index) + half + ClockPositions) % ClockPositions
	return Position{Index: uint8(idx), Magnitude: truncMean(p1.Magnitude, p2.Magnitude)}
}

// ScaleToLayer rescales the magnitude by 12 per layer step so that the
// position is expressed relative to target.
func ScaleToLayer(p Position, target uint8) Position {
	diff := int(target) - int(p.Layer())
	factor := int64(1)
	for i := 0; i < abs(diff); i++ {
		factor *= ClockPositions
	}
	mag := p.Magnitude / factor
	if diff > 0 {
		mag = p.Magnitude * factor
	}
	return Position{Ring: p.Ring, Index: p.Index, Magnitude: mag}
}

// truncMean computes the mean of vals truncated toward zero without
// overflowing the intermediate sum.
func truncMean(vals ...int64) int64 {
	n := int64(len(vals))
	var q, r int64
	for _, v := range vals {
		q += v / n
		r += v % n
	}
	res := q + r/n
	rem := r % n
	switch {
	case res > 0 && rem < 0:
		res--
	case res < 0 && rem > 0:
		res++
	}
	return res
}

func saturate(f float64) int64 {
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
