package loom

// Stats is a snapshot of group state. All counters are read lock-free, so
// values may be slightly inconsistent with each other during concurrent
// operation.
//
// Example:
//
//	s := g.Stats()
//	fmt.Printf("queue %d/%d (%.0f%%)\n", s.QueueDepth, s.QueueCapacity, s.Utilization)
type Stats struct {
	// GroupID is the group's process-unique id.
	GroupID uint64

	// NumWorkers is the number of workers, fixed at construction.
	NumWorkers int

	// QueueDepth is the number of accepted, not-yet-drained tasks across all
	// lanes.
	QueueDepth int

	// QueueCapacity is the shared capacity budget.
	QueueCapacity int

	// Utilization is QueueDepth as a percentage of QueueCapacity, 0-100.
	// Sustained high values mean posts are close to being rejected.
	Utilization float64

	// Executed is the total number of tasks and timer callbacks completed
	// without panicking, summed over all workers.
	Executed uint64

	// Failed is the total number of tasks that panicked. Failed tasks are
	// not counted in Executed.
	Failed uint64

	// Workers holds one entry per worker, indexed by worker id.
	Workers []WorkerStats
}

// WorkerStats is the per-worker slice of a Stats snapshot.
type WorkerStats struct {
	// WorkerID is the worker's index within the group.
	WorkerID int

	// Executed is the number of tasks and timer callbacks this worker
	// completed without panic.
	Executed uint64

	// Failed is the number of tasks that panicked on this worker.
	Failed uint64

	// LaneDepth is the number of undrained tasks in this worker's lane.
	LaneDepth int

	// TimersPending is the number of armed timers on this worker's wheel:
	// unexpired one-shots plus all periodic timers.
	TimersPending int
}

// Stats returns a snapshot of the group's counters and queue occupancy.
func (g *Group) Stats() Stats {
	s := Stats{
		GroupID:       g.id,
		NumWorkers:    len(g.workers),
		QueueDepth:    g.queue.Len(),
		QueueCapacity: g.queue.Cap(),
		Workers:       make([]WorkerStats, len(g.workers)),
	}

	for i, w := range g.workers {
		executed := w.tasksExecuted.Load()
		failed := w.tasksFailed.Load()
		s.Executed += executed
		s.Failed += failed
		s.Workers[i] = WorkerStats{
			WorkerID:      i,
			Executed:      executed,
			Failed:        failed,
			LaneDepth:     w.lane.Len(),
			TimersPending: w.wheel.pendingTimers(),
		}
	}

	if s.QueueCapacity > 0 {
		s.Utilization = float64(s.QueueDepth) / float64(s.QueueCapacity) * 100.0
	}
	return s
}
