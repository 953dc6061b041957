// File: geometry/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package geometry implements O(1) addressing on the 12-point clock lattice:
// positions, ring distances, triangulation, carry arithmetic, magnitude layers
// and the Platonic frames assigned to each layer.
//
// Everything here is a pure value-to-value function. The only precomputed
// tables (icosahedron vertices, their adjacency and the per-layer frames)
// live in a Lattice value built once by the caller and passed down explicitly.
package geometry
