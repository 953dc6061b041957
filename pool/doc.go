// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for geomesh threads.
// ChunkPool recycles fixed-size chunks, mmap-backed and first-touch placed on
// linux when NUMA awareness is requested. Arena is the per-thread bump
// allocator carved out of those chunks; it backs Thread.AllocLocal.
package pool
