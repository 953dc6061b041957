// File: geometry/arithmetic_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTriangulate(t *testing.T) {
	got := Triangulate(
		Position{Index: 4, Magnitude: 10},
		Position{Index: 5, Magnitude: 11},
		Position{Index: 6, Magnitude: 13},
	)
	assert.Equal(t, uint8(3), got.Index)
	assert.Equal(t, int64(11), got.Magnitude)
}

func TestTriangulateTruncates(t *testing.T) {
	got := Triangulate(Position{Magnitude: -1}, Position{Magnitude: -1}, Position{Magnitude: 0})
	assert.Equal(t, int64(0), got.Magnitude)

	got = Triangulate(Position{Magnitude: 2}, Position{Magnitude: 2}, Position{Magnitude: -1})
	assert.Equal(t, int64(1), got.Magnitude)

	got = Triangulate(
		Position{Magnitude: math.MaxInt64},
		Position{Magnitude: math.MaxInt64},
		Position{Magnitude: math.MaxInt64},
	)
	assert.Equal(t, int64(math.MaxInt64), got.Magnitude)
}

func TestTriangulateWeighted(t *testing.T) {
	p1 := Position{Index: 0, Magnitude: 0}
	p2 := Position{Index: 6, Magnitude: 60}
	p3 := Position{Index: 3, Magnitude: 30}

	got, ok := TriangulateWeighted(p1, 1, p2, 1, p3, 1)
	assert.True(t, ok)
	assert.Equal(t, uint8(3), got.Index)
	assert.Equal(t, int64(30), got.Magnitude)

	got, ok = TriangulateWeighted(p1, 0, p2, 2, p3, 0)
	assert.True(t, ok)
	assert.Equal(t, p2.Index, got.Index)
	assert.Equal(t, p2.Magnitude, got.Magnitude)

	_, ok = TriangulateWeighted(p1, 0, p2, 0, p3, 0)
	assert.False(t, ok)
	_, ok = TriangulateWeighted(p1, -1, p2, 2, p3, 1)
	assert.False(t, ok)
	_, ok = TriangulateWeighted(p1, math.NaN(), p2, 2, p3, 1)
	assert.False(t, ok)
}

func TestScale(t *testing.T) {
	got := Scale(Position{Index: 5, Magnitude: 2}, 3)
	assert.Equal(t, uint8(3), got.Index)
	assert.Equal(t, int64(7), got.Magnitude)

	got = Scale(Position{Index: 5, Magnitude: 2}, -1)
	assert.Equal(t, uint8(7), got.Index)
}

func TestMidpoint(t *testing.T) {
	got := Midpoint(Position{Index: 2, Magnitude: 10}, Position{Index: 6, Magnitude: 20})
	assert.Equal(t, uint8(4), got.Index)
	assert.Equal(t, int64(15), got.Magnitude)

	got = Midpoint(Position{Index: 1}, Position{Index: 9})
	assert.Equal(t, uint8(11), got.Index)
}

func TestScaleToLayer(t *testing.T) {
	p := Position{Ring: 2, Index: 3, Magnitude: 5}
	up := ScaleToLayer(p, 2)
	assert.Equal(t, int64(5*144), up.Magnitude)
	assert.Equal(t, p.Ring, up.Ring)
	assert.Equal(t, p.Index, up.Index)

	down := ScaleToLayer(Position{Magnitude: 1_728_000}, 0)
	assert.Equal(t, int64(12_000), down.Magnitude)

	same := ScaleToLayer(p, 0)
	assert.Equal(t, p, same)
}
