// File: control/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus collector reading pool statistics at scrape time.

package control

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/geomesh/hierarchy"
)

const namespace = "geomesh"

// PoolCollector exports the counters of one hierarchy.Pool. Values are read
// on every scrape; nothing is cached between scrapes.
type PoolCollector struct {
	pool *hierarchy.Pool

	threads       *prometheus.Desc
	boundaries    *prometheus.Desc
	regions       *prometheus.Desc
	loadBalance   *prometheus.Desc
	pending       *prometheus.Desc
	stolen        *prometheus.Desc
	boundaryIO    *prometheus.Desc
	conflicts     *prometheus.Desc
	invalidations *prometheus.Desc

	workCompleted *prometheus.Desc
	workFailed    *prometheus.Desc
	messagesSent  *prometheus.Desc
	messagesRecv  *prometheus.Desc
	stateChanges  *prometheus.Desc
	localMemory   *prometheus.Desc
}

// NewPoolCollector creates a collector for p labelled with the pool id.
func NewPoolCollector(p *hierarchy.Pool) *PoolCollector {
	constLabels := prometheus.Labels{"pool": p.ID()}
	threadLabels := []string{"thread", "role"}
	desc := func(subsystem, name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, constLabels)
	}
	return &PoolCollector{
		pool:          p,
		threads:       desc("pool", "threads", "Live threads in the pool.", nil),
		boundaries:    desc("pool", "boundaries", "Kissing boundaries registered in the pool.", nil),
		regions:       desc("pool", "regions", "Regions indexed in the rainbow table.", nil),
		loadBalance:   desc("pool", "load_balance_factor", "Min over max completed work across workers; 1 is perfect balance.", nil),
		pending:       desc("work", "pending_tasks", "Tasks submitted and not yet finished.", nil),
		stolen:        desc("work", "stolen_tasks_total", "Tasks taken by work stealing.", nil),
		boundaryIO:    desc("boundary", "operations_total", "Boundary reads and writes.", []string{"op"}),
		conflicts:     desc("boundary", "version_conflicts_total", "Lock-free reads that overlapped a write.", nil),
		invalidations: desc("boundary", "invalidations_total", "Boundary cache invalidations.", nil),
		workCompleted: desc("thread", "work_completed_total", "Tasks completed by the thread.", threadLabels),
		workFailed:    desc("thread", "work_failed_total", "Tasks failed by the thread.", threadLabels),
		messagesSent:  desc("thread", "messages_sent_total", "Messages posted to neighbors.", threadLabels),
		messagesRecv:  desc("thread", "messages_received_total", "Messages taken from neighbors.", threadLabels),
		stateChanges:  desc("thread", "state_changes_total", "Successful state transitions.", threadLabels),
		localMemory:   desc("thread", "local_memory_bytes", "Bytes allocated from the thread arena.", threadLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.threads, c.boundaries, c.regions, c.loadBalance, c.pending, c.stolen,
		c.boundaryIO, c.conflicts, c.invalidations,
		c.workCompleted, c.workFailed, c.messagesSent, c.messagesRecv, c.stateChanges, c.localMemory,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.pool.Stats()
	ds := c.pool.Distributor().Stats()
	bs := c.pool.Boundaries().Stats()

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	gauge(c.threads, float64(st.Threads))
	gauge(c.boundaries, float64(st.Boundaries))
	gauge(c.regions, float64(st.Regions))
	gauge(c.loadBalance, st.LoadBalanceFactor)
	gauge(c.pending, float64(ds.Pending))
	counter(c.stolen, ds.Stolen)
	counter(c.boundaryIO, bs.TotalReads, "read")
	counter(c.boundaryIO, bs.TotalWrites, "write")
	counter(c.conflicts, bs.Conflicts)
	counter(c.invalidations, bs.Invalidations)

	for _, t := range c.pool.Threads() {
		ts, err := c.pool.ThreadStats(t.ID())
		if err != nil {
			continue
		}
		id := strconv.Itoa(ts.ID)
		counter(c.workCompleted, ts.WorkCompleted, id, ts.Role)
		counter(c.workFailed, ts.WorkFailed, id, ts.Role)
		counter(c.messagesSent, ts.MessagesSent, id, ts.Role)
		counter(c.messagesRecv, ts.MessagesReceived, id, ts.Role)
		counter(c.stateChanges, ts.StateChanges, id, ts.Role)
		gauge(c.localMemory, float64(ts.LocalMemoryUsed), id, ts.Role)
	}
}

var _ prometheus.Collector = (*PoolCollector)(nil)
