// Package loom provides a fixed-size worker group with per-worker timer
// scheduling and a sharded, capacity-bounded task queue.
//
// Each worker is a single-threaded actor: it owns one consumer lane of the
// shared queue and one timer wheel, and executes everything assigned to it -
// tasks and timer callbacks alike - serially on a dedicated OS-locked
// goroutine. The group as a whole gives horizontal fan-out: any goroutine can
// post work to an arbitrary worker or to a specific one, and distinct workers
// run fully in parallel.
//
// # Quick start
//
//	g, err := loom.New(4, 1024)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer g.Close()
//
//	// Post to any worker.
//	g.Post(func() { fmt.Println("hello") })
//
//	// Post to worker 2; tasks targeted at one worker run in post order.
//	g.PostTo(2, func() { fmt.Println("on worker 2") })
//
//	// Run after 50ms on whichever worker picks up the request.
//	g.PostDelayed(func() { fmt.Println("later") }, 50*time.Millisecond)
//
//	// Run every second, pinned to worker 0.
//	g.PostPeriodicTo(0, tick, time.Second)
//
// # Ordering and backpressure
//
// Tasks targeted at the same worker execute in FIFO order relative to
// producers that synchronize with each other. There is no ordering across
// workers and no global FIFO. The queue's capacity is a single budget shared
// by all lanes: it bounds total in-flight work, and when it is exhausted
// Post returns false instead of blocking or growing the queue. Rejection is
// the backpressure signal; nothing is partially scheduled.
//
// # Delayed and periodic work
//
// PostDelayed and PostPeriodic are two-hop operations: the queue carries an
// arm-request, and the worker that dequeues it arms the timer on itself. The
// delay therefore runs from the moment of dequeue, not from the Post call,
// and an untargeted delayed task lands on whichever worker dequeued the
// request. A task already running on a worker can arm timers on that worker
// directly:
//
//	g.Post(func() {
//	    loom.Current().Schedule(time.Second, followUp)
//	})
//
// # Shutdown
//
// Close is cooperative: workers finish their in-flight batch and poll, then
// exit. No task is aborted, and no task execution time is bounded - a
// long-running task stalls its whole worker, including that worker's timers.
// Keep tasks short, or hand long work off elsewhere.
//
// # Observability
//
// Stats returns lock-free snapshots of queue occupancy and per-worker
// counters; NewCollector adapts them to a prometheus.Collector. Lifecycle
// events and task panics go to the optional zap logger.
package loom
