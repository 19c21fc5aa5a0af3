package loom

import (
	"fmt"
	"sync/atomic"
)

// cacheLinePad prevents false sharing between hot fields
type cacheLinePad struct {
	_ [64]byte
}

// TaskQueue is a bounded, sharded, multi-producer queue. It is split into a
// fixed number of consumer lanes, one per worker; every enqueued task is
// delivered to exactly one lane. Capacity is a single budget shared across
// all lanes: the bounded resource is total in-flight work, not per-lane
// fairness, so one lane's backlog reduces headroom for the others.
//
// Producers may be registered at any time from any goroutine. Consumers must
// all be registered before the first push; the lane layout is sealed once
// tasks start flowing.
type TaskQueue struct {
	capacity int64
	lanes    []*Lane

	// inflight is the shared capacity budget. A push reserves a unit before
	// touching any lane ring; a pop releases it.
	inflight atomic.Int64

	// consumers counts claimed lanes; producers seeds round-robin cursors.
	consumers atomic.Int32
	producers atomic.Uint64

	// sealed flips on the first push and stays set.
	sealed atomic.Bool
}

// Lane is one consumer-side partition of a TaskQueue. Exactly one goroutine
// (the owning worker) may call Pop; any number of producers may push into it
// concurrently. Internally it is a lock-free MPSC ring: producers claim slots
// with an atomic tail increment, the consumer advances head alone.
type Lane struct {
	_ cacheLinePad

	// head is only modified by the single consumer
	head atomic.Uint64

	_ cacheLinePad

	// tail is modified by multiple producers
	tail atomic.Uint64

	_ cacheLinePad

	queue *TaskQueue
	index int
	slots []atomic.Pointer[Task]
	mask  uint64
}

// Producer is a registered output handle into a TaskQueue. Handles are cheap
// to create and never deregistered; each carries its own round-robin cursor
// for untargeted pushes, seeded by registration order so that independent
// producers start on different lanes.
//
// A Producer is owned by whoever registered it and must not be used from two
// goroutines at once; register one handle per posting goroutine (the group's
// handle cache does this). The queue itself accepts pushes from any number
// of handles concurrently.
//
// A Producer keeps its TaskQueue reachable, independent of whatever owns the
// queue's consumer side.
type Producer struct {
	queue  *TaskQueue
	cursor uint64
}

// NewTaskQueue creates a queue with the given shared capacity and lane count.
// Capacity bounds the total number of undrained tasks across all lanes.
func NewTaskQueue(capacity, lanes int) (*TaskQueue, error) {
	if capacity <= 0 {
		return nil, errInvalidConfig("capacity must be > 0")
	}
	if lanes <= 0 {
		return nil, errInvalidConfig("lane count must be > 0")
	}

	q := &TaskQueue{
		capacity: int64(capacity),
		lanes:    make([]*Lane, lanes),
	}

	// Each ring must be able to hold the entire shared budget, since the
	// placement policy may concentrate every in-flight task on one lane.
	// One slot of headroom keeps head==tail meaning strictly empty.
	ringSize := nextPowerOfTwo(capacity + 1)
	for i := range q.lanes {
		q.lanes[i] = &Lane{
			queue: q,
			index: i,
			slots: make([]atomic.Pointer[Task], ringSize),
			mask:  uint64(ringSize - 1),
		}
	}
	return q, nil
}

// RegisterConsumer claims the next unclaimed lane. It is intended to be
// called exactly once per worker while the owning group is being built.
// It fails once all lanes are claimed, and it fails after any producer has
// pushed, because the lane layout must be fixed before tasks flow.
func (q *TaskQueue) RegisterConsumer() (*Lane, error) {
	if q.sealed.Load() {
		return nil, ErrQueueSealed
	}
	n := q.consumers.Add(1)
	if int(n) > len(q.lanes) {
		q.consumers.Add(-1)
		return nil, ErrNoFreeLane
	}
	return q.lanes[n-1], nil
}

// RegisterProducer returns a new output handle. Safe to call concurrently
// from any goroutine, any number of times.
func (q *TaskQueue) RegisterProducer() *Producer {
	return &Producer{
		queue:  q,
		cursor: q.producers.Add(1),
	}
}

// Push enqueues an untargeted task. The lane is chosen by strict round-robin
// over this producer's cursor: deterministic for a given producer, and every
// lane is visited once per full cycle, so no lane starves.
//
// Returns false, committing nothing, if the shared capacity is exhausted or
// the task is nil.
func (p *Producer) Push(t Task) bool {
	if t == nil {
		return false
	}
	q := p.queue
	if !q.reserve() {
		return false
	}
	lane := q.lanes[p.cursor%uint64(len(q.lanes))]
	p.cursor++
	lane.push(t)
	return true
}

// PushTo enqueues a task targeted at one specific lane. The same capacity
// contract applies. An out-of-range lane index is a programming error and
// panics rather than misrouting.
func (p *Producer) PushTo(lane int, t Task) bool {
	q := p.queue
	if lane < 0 || lane >= len(q.lanes) {
		panic(fmt.Sprintf("loom: push to invalid lane %d (have %d lanes)", lane, len(q.lanes)))
	}
	if t == nil {
		return false
	}
	if !q.reserve() {
		return false
	}
	q.lanes[lane].push(t)
	return true
}

// reserve claims one unit of the shared capacity budget.
func (q *TaskQueue) reserve() bool {
	if !q.sealed.Load() {
		q.sealed.Store(true)
	}
	if q.inflight.Add(1) > q.capacity {
		q.inflight.Add(-1)
		return false
	}
	return true
}

// push publishes a task into the lane ring. The caller must already hold a
// capacity reservation, which guarantees a free slot, so claiming the slot is
// a plain atomic increment rather than a CAS retry loop. Slot order is fixed
// by the increment, which is what gives per-lane FIFO for producers that
// synchronize with each other.
func (l *Lane) push(t Task) {
	tail := l.tail.Add(1) - 1
	l.slots[tail&l.mask].Store(&t)
}

// Pop removes and returns the oldest task in the lane, or nil if the lane is
// currently empty. Single consumer only - never call from more than one
// goroutine.
func (l *Lane) Pop() Task {
	head := l.head.Load()
	if head >= l.tail.Load() {
		return nil
	}

	slot := &l.slots[head&l.mask]
	tp := slot.Load()
	if tp == nil {
		// A producer has claimed the slot but not yet published into it.
		// Treat the lane as momentarily empty; the task is picked up on the
		// next pass.
		return nil
	}

	slot.Store(nil)
	l.head.Store(head + 1)
	l.queue.inflight.Add(-1)
	return *tp
}

// Index returns the lane's position within the queue, matching the owning
// worker's id.
func (l *Lane) Index() int {
	return l.index
}

// Len returns the approximate number of undrained tasks in this lane.
// Snapshot only; may be stale during concurrent operations.
func (l *Lane) Len() int {
	head := l.head.Load()
	tail := l.tail.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Len returns the approximate number of undrained tasks across all lanes.
func (q *TaskQueue) Len() int {
	n := q.inflight.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Cap returns the shared capacity budget.
func (q *TaskQueue) Cap() int {
	return int(q.capacity)
}

// Lanes returns the number of consumer lanes.
func (q *TaskQueue) Lanes() int {
	return len(q.lanes)
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
