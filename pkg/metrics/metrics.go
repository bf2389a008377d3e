// Package metrics exposes the worker pool's health as Prometheus gauges,
// grounded in the pack's prometheus/client_golang usage (referenced by
// Heikkila-Pty-Ltd-cortex and theRebelliousNerd-codenerd's go.mod). The
// core's own observability story is otherwise OTel tracing (pkg/tracing);
// this package covers the complementary pull-based metrics surface a
// deployment's scraper expects alongside it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lineagekit/discovery/pkg/queue"
)

// Collector adapts a *queue.WorkerPool's Health snapshot to the
// prometheus.Collector interface: each Collect call re-reads pool.Health(),
// so the exported gauges are always current as of the last scrape rather
// than a stale copy pushed on some other cadence.
type Collector struct {
	pool *queue.WorkerPool

	queueDepth       *prometheus.Desc
	activeJobs       *prometheus.Desc
	activeWorkers    *prometheus.Desc
	totalWorkers     *prometheus.Desc
	orphansRecovered *prometheus.Desc
	healthy          *prometheus.Desc
}

// NewCollector wraps pool for registration with a prometheus.Registry.
func NewCollector(pool *queue.WorkerPool) *Collector {
	ns := "discovery_worker_pool"
	return &Collector{
		pool:             pool,
		queueDepth:       prometheus.NewDesc(ns+"_queue_depth", "Number of pending job_queue entries.", nil, nil),
		activeJobs:       prometheus.NewDesc(ns+"_active_jobs", "Number of jobs currently processing.", nil, nil),
		activeWorkers:    prometheus.NewDesc(ns+"_active_workers", "Number of workers currently executing a job.", nil, nil),
		totalWorkers:     prometheus.NewDesc(ns+"_total_workers", "Configured worker count.", nil, nil),
		orphansRecovered: prometheus.NewDesc(ns+"_orphans_recovered_total", "Queue entries reclaimed from crashed workers since start.", nil, nil),
		healthy:          prometheus.NewDesc(ns+"_healthy", "1 if the pool and its store connection are healthy, else 0.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queueDepth
	ch <- c.activeJobs
	ch <- c.activeWorkers
	ch <- c.totalWorkers
	ch <- c.orphansRecovered
	ch <- c.healthy
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	h := c.pool.Health()

	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(h.QueueDepth))
	ch <- prometheus.MustNewConstMetric(c.activeJobs, prometheus.GaugeValue, float64(h.ActiveJobs))
	ch <- prometheus.MustNewConstMetric(c.activeWorkers, prometheus.GaugeValue, float64(h.ActiveWorkers))
	ch <- prometheus.MustNewConstMetric(c.totalWorkers, prometheus.GaugeValue, float64(h.TotalWorkers))
	ch <- prometheus.MustNewConstMetric(c.orphansRecovered, prometheus.GaugeValue, float64(h.OrphansRecovered))

	healthy := 0.0
	if h.IsHealthy {
		healthy = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.healthy, prometheus.GaugeValue, healthy)
}
