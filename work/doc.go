// File: work/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package work assigns work items to workers. Distribute is the one-shot
// greedy planner: items sorted by descending size go to the least loaded
// worker. Distributor is the running engine behind a pool: per-worker FIFO
// queues, a shared global queue, stealing and load balancing.
package work
