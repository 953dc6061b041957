// File: boundary/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package boundary implements kissing boundaries: fixed-size buffers shared
// by exactly two adjacent compute units, with lock-free reads, mutex-scoped
// writes and a version counter used as a cache coherency signal.
package boundary
