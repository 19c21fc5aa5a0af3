package loom

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a group's Stats snapshot as Prometheus metrics. It is a
// pull-time collector built on ConstMetrics: registering it adds no cost to
// the posting or execution paths, scrapes read the same lock-free counters
// Stats does.
//
// Example:
//
//	g, _ := loom.New(4, 1024)
//	prometheus.MustRegister(loom.NewCollector(g))
type Collector struct {
	group *Group

	queueDepth    *prometheus.Desc
	queueCapacity *prometheus.Desc
	tasksExecuted *prometheus.Desc
	tasksFailed   *prometheus.Desc
	timersPending *prometheus.Desc
}

// NewCollector creates a collector for the given group. Each metric carries
// a "group" label with the group id; per-worker metrics add a "worker"
// label.
func NewCollector(g *Group) *Collector {
	return &Collector{
		group: g,
		queueDepth: prometheus.NewDesc(
			"loom_queue_depth",
			"Accepted, not-yet-drained tasks across all lanes.",
			nil, prometheus.Labels{"group": formatGroupID(g.ID())},
		),
		queueCapacity: prometheus.NewDesc(
			"loom_queue_capacity",
			"Shared task queue capacity budget.",
			nil, prometheus.Labels{"group": formatGroupID(g.ID())},
		),
		tasksExecuted: prometheus.NewDesc(
			"loom_tasks_executed_total",
			"Tasks and timer callbacks completed without panic.",
			[]string{"worker"}, prometheus.Labels{"group": formatGroupID(g.ID())},
		),
		tasksFailed: prometheus.NewDesc(
			"loom_tasks_failed_total",
			"Tasks that panicked during execution.",
			[]string{"worker"}, prometheus.Labels{"group": formatGroupID(g.ID())},
		),
		timersPending: prometheus.NewDesc(
			"loom_timers_pending",
			"Armed timers per worker: unexpired one-shots plus periodic timers.",
			[]string{"worker"}, prometheus.Labels{"group": formatGroupID(g.ID())},
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queueDepth
	ch <- c.queueCapacity
	ch <- c.tasksExecuted
	ch <- c.tasksFailed
	ch <- c.timersPending
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.group.Stats()

	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(s.QueueDepth))
	ch <- prometheus.MustNewConstMetric(c.queueCapacity, prometheus.GaugeValue, float64(s.QueueCapacity))

	for _, ws := range s.Workers {
		worker := strconv.Itoa(ws.WorkerID)
		ch <- prometheus.MustNewConstMetric(c.tasksExecuted, prometheus.CounterValue, float64(ws.Executed), worker)
		ch <- prometheus.MustNewConstMetric(c.tasksFailed, prometheus.CounterValue, float64(ws.Failed), worker)
		ch <- prometheus.MustNewConstMetric(c.timersPending, prometheus.GaugeValue, float64(ws.TimersPending), worker)
	}
}

func formatGroupID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
