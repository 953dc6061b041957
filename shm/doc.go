// File: shm/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package shm implements versioned in-process shared memory regions, an
// enhanced variant with invalidation history and callbacks, and the
// direct-indexed rainbow table used to find regions by id in O(1).
//
// Writers are serialized per region and bump the version by exactly one
// on release. Readers only maintain an atomic reader count and never block.
package shm
