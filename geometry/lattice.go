// File: geometry/lattice.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package geometry

import "math"

// Phi is the golden ratio.
const Phi = 1.618033988749894848204586834365638117720309179805762862135

const (
	// IcosahedronVertices is the vertex count of the icosahedron.
	IcosahedronVertices = 12
	// IcosahedronDegree is the number of neighbors of every vertex.
	IcosahedronDegree = 5
	edgeLength        = 2.0
	edgeTolerance     = 1e-9
)

// icosahedron lists the vertices in the order (0, ±1, ±φ), (±1, ±φ, 0),
// (±φ, 0, ±1).
var icosahedron = [IcosahedronVertices][3]float64{
	{0, 1, Phi}, {0, 1, -Phi}, {0, -1, Phi}, {0, -1, -Phi},
	{1, Phi, 0}, {1, -Phi, 0}, {-1, Phi, 0}, {-1, -Phi, 0},
	{Phi, 0, 1}, {Phi, 0, -1}, {-Phi, 0, 1}, {-Phi, 0, -1},
}

// IcosahedronVertex returns the coordinates of vertex id. Ids wrap modulo 12.
func IcosahedronVertex(id int) [3]float64 {
	return icosahedron[vertexID(id)]
}

// Lattice holds the precomputed tables of the geometric mesh. Build it once
// with NewLattice and share it; it is immutable afterwards.
type Lattice struct {
	vertices  [IcosahedronVertices][3]float64
	neighbors [IcosahedronVertices][IcosahedronDegree]int
	frames    [NumLayers]Frame
}

// NewLattice computes the vertex table, the true icosahedral adjacency and the
// frames of every layer.
func NewLattice() *Lattice {
	l := &Lattice{}
	for i := range l.vertices {
		l.vertices[i] = IcosahedronVertex(i)
	}
	for i := range l.vertices {
		n := 0
		for j := range l.vertices {
			if i == j {
				continue
			}
			if math.Abs(euclid(l.vertices[i], l.vertices[j])-edgeLength) < edgeTolerance {
				l.neighbors[i][n] = j
				n++
			}
		}
	}
	for layer := range l.frames {
		l.frames[layer] = FrameFor(uint8(layer))
	}
	return l
}

// Vertex returns the coordinates of icosahedron vertex id modulo 12.
func (l *Lattice) Vertex(id int) [3]float64 {
	return l.vertices[vertexID(id)]
}

// Neighbors returns the five vertices adjacent to id, in ascending order.
func (l *Lattice) Neighbors(id int) [IcosahedronDegree]int {
	return l.neighbors[vertexID(id)]
}

// Adjacent reports whether two icosahedron vertices share an edge.
func (l *Lattice) Adjacent(a, b int) bool {
	for _, n := range l.Neighbors(a) {
		if n == vertexID(b) {
			return true
		}
	}
	return false
}

// Frame returns the precomputed frame of a layer. An invalid layer yields
// an empty frame that fails Validate.
func (l *Lattice) Frame(layer uint8) Frame {
	if !ValidLayer(layer) {
		return FrameFor(layer)
	}
	return l.frames[layer]
}

// FrameOf returns the frame of the layer p belongs to.
func (l *Lattice) FrameOf(p Position) Frame { return l.Frame(p.Layer()) }

func euclid(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func vertexID(id int) int {
	return ((id % IcosahedronVertices) + IcosahedronVertices) % IcosahedronVertices
}
