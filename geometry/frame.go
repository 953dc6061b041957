// File: geometry/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package geometry

import "math"

// Solid identifies one of the five Platonic solids.
type Solid uint8

const (
	Tetrahedron Solid = iota
	Cube
	Octahedron
	Dodecahedron
	Icosahedron
)

var solidNames = [...]string{"tetrahedron", "cube", "octahedron", "dodecahedron", "icosahedron"}

func (s Solid) String() string {
	if int(s) < len(solidNames) {
		return solidNames[s]
	}
	return "unknown"
}

type solidShape struct {
	vertices, edges, faces int
	dual                   Solid
}

var shapes = [...]solidShape{
	Tetrahedron:  {4, 6, 4, Tetrahedron},
	Cube:         {8, 12, 6, Octahedron},
	Octahedron:   {6, 12, 8, Cube},
	Dodecahedron: {20, 30, 12, Icosahedron},
	Icosahedron:  {12, 30, 20, Dodecahedron},
}

// Frame is the Platonic frame attached to a magnitude layer.
type Frame struct {
	Layer     uint8
	Solid     Solid
	DualSolid Solid
	Vertices  int
	Edges     int
	Faces     int
	Radius    float64
}

// ValidLayer reports whether layer names one of the NumLayers bands.
func ValidLayer(layer uint8) bool { return layer < NumLayers }

// FrameFor returns the frame of a layer. Solids cycle with period five.
// An invalid layer yields an empty frame that fails Validate.
func FrameFor(layer uint8) Frame {
	if !ValidLayer(layer) {
		return Frame{Layer: layer}
	}
	s := Solid(layer % 5)
	sh := shapes[s]
	return Frame{
		Layer:     layer,
		Solid:     s,
		DualSolid: sh.dual,
		Vertices:  sh.vertices,
		Edges:     sh.edges,
		Faces:     sh.faces,
		Radius:    1,
	}
}

// Validate reports whether f is the frame of a valid layer.
func (f Frame) Validate() bool {
	return ValidLayer(f.Layer) && f.Vertices > 0 && f.Euler() == 2
}

// Dual swaps the solid with its dual and exchanges vertex and face counts.
func (f Frame) Dual() Frame {
	d := f
	d.Solid, d.DualSolid = f.DualSolid, f.Solid
	d.Vertices, d.Faces = f.Faces, f.Vertices
	return d
}

// Euler returns V - E + F, which is 2 for every convex polyhedron.
func (f Frame) Euler() int { return f.Vertices - f.Edges + f.Faces }

// Vertex projects a clock index onto the frame's circumscribed circle in the
// z=0 plane.
func (f Frame) Vertex(index uint8) [3]float64 {
	rad := float64(index) * DegreesPerPosition * math.Pi / 180
	return [3]float64{f.Radius * math.Cos(rad), f.Radius * math.Sin(rad), 0}
}
