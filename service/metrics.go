package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Gthulhu/schedcore/domain"
)

// MetricCollector exposes scheduler counters to Prometheus. Every scrape
// takes a fresh snapshot and emits const metrics from it, so there is no
// state to keep in sync with the kernel.
type MetricCollector struct {
	intro domain.Introspector

	ticks        *prometheus.Desc
	idleTicks    *prometheus.Desc
	kernelTicks  *prometheus.Desc
	dispatches   *prometheus.Desc
	readyThreads *prometheus.Desc
	liveThreads  *prometheus.Desc
	loadAvg      *prometheus.Desc
}

func NewMetricCollector(intro domain.Introspector, machineID string) *MetricCollector {
	labels := prometheus.Labels{"machine_id": machineID}
	return &MetricCollector{
		intro: intro,
		ticks: prometheus.NewDesc("sched_ticks_total",
			"Timer ticks since boot", nil, labels),
		idleTicks: prometheus.NewDesc("sched_idle_ticks_total",
			"Ticks spent in the idle thread", nil, labels),
		kernelTicks: prometheus.NewDesc("sched_kernel_ticks_total",
			"Ticks charged to kernel threads", nil, labels),
		dispatches: prometheus.NewDesc("sched_dispatches_total",
			"Context switches performed", nil, labels),
		readyThreads: prometheus.NewDesc("sched_ready_threads",
			"Threads waiting in the ready queue", nil, labels),
		liveThreads: prometheus.NewDesc("sched_live_threads",
			"Live threads by state", []string{"status"}, labels),
		loadAvg: prometheus.NewDesc("sched_load_avg",
			"System load average", nil, labels),
	}
}

func (c *MetricCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticks
	ch <- c.idleTicks
	ch <- c.kernelTicks
	ch <- c.dispatches
	ch <- c.readyThreads
	ch <- c.liveThreads
	ch <- c.loadAvg
}

func (c *MetricCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.intro.Snapshot()
	stats := snap.Stats

	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(stats.Ticks))
	ch <- prometheus.MustNewConstMetric(c.idleTicks, prometheus.CounterValue, float64(stats.IdleTicks))
	ch <- prometheus.MustNewConstMetric(c.kernelTicks, prometheus.CounterValue, float64(stats.KernelTicks))
	ch <- prometheus.MustNewConstMetric(c.dispatches, prometheus.CounterValue, float64(stats.Dispatches))
	ch <- prometheus.MustNewConstMetric(c.readyThreads, prometheus.GaugeValue, float64(stats.ReadyThreads))
	ch <- prometheus.MustNewConstMetric(c.loadAvg, prometheus.GaugeValue, float64(stats.LoadAvgTimes100)/100)

	byStatus := make(map[string]int)
	for _, t := range snap.Threads {
		byStatus[t.Status]++
	}
	for status, n := range byStatus {
		ch <- prometheus.MustNewConstMetric(c.liveThreads, prometheus.GaugeValue, float64(n), status)
	}
}
