package loom

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of work executed on a worker goroutine.
type Task func()

// nextGroupID hands out process-unique group ids, monotonically increasing
// from 0 and never reused.
var nextGroupID atomic.Uint64

// Group is a fixed-size set of workers sharing one sharded task queue. Any
// goroutine can post tasks to an arbitrary worker or to a specific one; a
// task already running on a worker can schedule delayed or periodic
// follow-ups on that same worker. Posting is non-blocking and bounded: when
// the shared queue capacity is exhausted, posts are rejected rather than
// queued, which is the group's backpressure signal.
type Group struct {
	id      uint64
	cfg     Config
	queue   *TaskQueue
	workers []*Worker
	log     *zap.Logger

	// producers caches registered output handles for posting goroutines:
	// handles are created lazily on first use and reused lock-free per P,
	// the Go shape of a per-thread per-group handle cache. A cached handle
	// keeps the queue reachable independently of the Group.
	producers sync.Pool

	closed atomic.Bool
}

// New creates a group of workerCount workers sharing a task queue of the
// given capacity and starts them. Capacity is a single budget across all
// workers, not a per-worker quota.
//
// Example:
//
//	g, err := loom.New(4, 1024)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer g.Close()
//
//	g.Post(func() { fmt.Println("on some worker") })
func New(workerCount, queueCapacity int, opts ...Option) (*Group, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if workerCount <= 0 {
		return nil, errInvalidConfig("worker count must be > 0")
	}

	queue, err := NewTaskQueue(queueCapacity, workerCount)
	if err != nil {
		return nil, err
	}

	g := &Group{
		id:    nextGroupID.Add(1) - 1,
		cfg:   cfg,
		queue: queue,
		log:   cfg.Logger,
	}
	g.producers.New = func() any {
		return queue.RegisterProducer()
	}

	g.workers = make([]*Worker, workerCount)
	for id := 0; id < workerCount; id++ {
		lane, err := queue.RegisterConsumer()
		if err != nil {
			return nil, err
		}
		g.workers[id] = newWorker(g, id, lane, cfg.PollerFactory(id))
	}

	for id, w := range g.workers {
		go w.run(fmt.Sprintf("w%d-%d", g.id, id))
	}

	g.log.Debug("group started",
		zap.Uint64("group", g.id),
		zap.Int("workers", workerCount),
		zap.Int("capacity", queueCapacity),
	)
	return g, nil
}

// ID returns the group's process-unique id.
func (g *Group) ID() uint64 {
	return g.id
}

// NumWorkers returns the number of workers in the group.
func (g *Group) NumWorkers() int {
	return len(g.workers)
}

// Post enqueues a task on a worker chosen by the queue's round-robin
// placement. Returns false, scheduling nothing, if the task is nil, the
// shared capacity is exhausted or the group is closed.
func (g *Group) Post(t Task) bool {
	if t == nil || g.closed.Load() {
		return false
	}
	p := g.producer()
	ok := p.Push(t)
	g.producers.Put(p)
	return ok
}

// PostTo enqueues a task on the named worker's lane. Posting to a worker id
// that does not exist is a programming error and panics. Capacity and
// closed-group behavior match Post.
func (g *Group) PostTo(workerID int, t Task) bool {
	if workerID < 0 || workerID >= len(g.workers) {
		panic(fmt.Sprintf("loom: post to invalid worker %d (group has %d workers)", workerID, len(g.workers)))
	}
	if t == nil || g.closed.Load() {
		return false
	}
	p := g.producer()
	ok := p.PushTo(workerID, t)
	g.producers.Put(p)
	return ok
}

// PostDelayed enqueues a request to run t after delay. The delay is measured
// from the moment a worker dequeues the request, not from the Post call, so
// the effective latency is the queueing wait plus delay; and the timer fires
// on whichever worker dequeued the request. Returns accepted/rejected for
// the enqueue only - if the group is torn down before the request is
// dequeued, the timer is never armed.
func (g *Group) PostDelayed(t Task, delay time.Duration) bool {
	if t == nil {
		return false
	}
	return g.Post(func() {
		Current().wheel.armOnce(delay, t)
	})
}

// PostDelayedTo is PostDelayed targeted at one worker: both the timer and
// the eventual execution are guaranteed to land on workerID.
func (g *Group) PostDelayedTo(workerID int, t Task, delay time.Duration) bool {
	if t == nil {
		return g.PostTo(workerID, nil)
	}
	return g.PostTo(workerID, func() {
		Current().wheel.armOnce(delay, t)
	})
}

// PostPeriodic enqueues a request to run t every period, armed on whichever
// worker dequeues the request. Same two-hop contract as PostDelayed.
func (g *Group) PostPeriodic(t Task, period time.Duration) bool {
	if t == nil {
		return false
	}
	return g.Post(func() {
		Current().wheel.armPeriodic(period, t)
	})
}

// PostPeriodicTo is PostPeriodic targeted at one worker.
func (g *Group) PostPeriodicTo(workerID int, t Task, period time.Duration) bool {
	if t == nil {
		return g.PostTo(workerID, nil)
	}
	return g.PostTo(workerID, func() {
		Current().wheel.armPeriodic(period, t)
	})
}

func (g *Group) producer() *Producer {
	return g.producers.Get().(*Producer)
}

// Close stops the group: new posts are rejected, every worker finishes its
// in-flight batch and poll, and Close blocks until all worker goroutines
// have exited - at most about one idle-poll timeout beyond the completion of
// whatever is mid-execution. Tasks still queued when Close is called may or
// may not run; callers must not rely on draining semantics during shutdown.
//
// Close is idempotent; later calls return immediately.
func (g *Group) Close() {
	if !g.closed.CompareAndSwap(false, true) {
		return
	}

	for _, w := range g.workers {
		w.stop.Store(true)
	}
	for _, w := range g.workers {
		<-w.done
	}

	g.log.Debug("group closed", zap.Uint64("group", g.id))
}
