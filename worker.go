package loom

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// maxBatchTasks is the batch cap: how many tasks a worker drains from its
	// lane before yielding to timer service and polling.
	maxBatchTasks = 16

	// idlePollTimeout bounds the poller wait after a partial batch.
	idlePollTimeout = time.Millisecond
)

// Worker owns one lane of its group's task queue, one timer wheel and one
// dedicated OS-locked goroutine. Every task and timer callback assigned to a
// worker executes synchronously on that goroutine, one at a time: tasks on
// the same worker never run concurrently with each other or with the
// worker's timers. Distinct workers run fully in parallel.
//
// A long-running task stalls its whole worker, including the worker's own
// timers, until it returns. Keep tasks short or hand long work off elsewhere.
type Worker struct {
	id    int
	group *Group
	lane  *Lane

	poller Poller
	wheel  *timerWheel

	// stop transitions false -> true exactly once. Relaxed visibility is
	// fine: a late observation only delays shutdown by one loop iteration.
	stop atomic.Bool
	done chan struct{}

	tasksExecuted atomic.Uint64
	tasksFailed   atomic.Uint64
}

func newWorker(g *Group, id int, lane *Lane, poller Poller) *Worker {
	return &Worker{
		id:     id,
		group:  g,
		lane:   lane,
		poller: poller,
		wheel:  newTimerWheel(time.Now()),
		done:   make(chan struct{}),
	}
}

// ID returns the worker's index within its group, matching its lane index.
func (w *Worker) ID() int {
	return w.id
}

// Group returns the group this worker belongs to.
func (w *Worker) Group() *Group {
	return w.group
}

// Post enqueues a task targeted at this worker's own lane. Equivalent to
// Group.PostTo with the worker's id.
func (w *Worker) Post(t Task) bool {
	return w.group.PostTo(w.id, t)
}

// Schedule arms a one-shot timer on this worker: t fires on the worker's
// goroutine once d has elapsed, serialized with the worker's tasks.
//
// Must be called from a task or timer callback already running on this
// worker; the wheel is confined to the worker's goroutine. Calling it from
// anywhere else panics. To schedule delayed work from outside, use
// Group.PostDelayed or Group.PostDelayedTo.
func (w *Worker) Schedule(d time.Duration, t Task) {
	w.checkSelf("Schedule")
	w.wheel.armOnce(d, t)
}

// SchedulePeriodic arms a repeating timer on this worker, firing every
// period. Same confinement rules as Schedule.
func (w *Worker) SchedulePeriodic(period time.Duration, t Task) {
	w.checkSelf("SchedulePeriodic")
	w.wheel.armPeriodic(period, t)
}

func (w *Worker) checkSelf(op string) {
	if Current() != w {
		panic("loom: Worker." + op + " called off the worker's own goroutine")
	}
}

// run is the worker main loop: advance the timer wheel by elapsed wall time,
// drain up to maxBatchTasks from the lane, then poll - with zero timeout when
// the batch was full (more work is likely queued) and a short idle timeout
// otherwise, so an idle worker neither busy-spins nor oversleeps.
func (w *Worker) run(name string) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	gid := goid()
	workerRegistry.Store(gid, w)
	defer workerRegistry.Delete(gid)

	log := w.group.log
	log.Debug("worker started", zap.String("worker", name))

	if w.group.cfg.OnWorkerStart != nil {
		w.group.cfg.OnWorkerStart(w.id)
	}

	for !w.stop.Load() {
		w.wheel.advance(time.Now(), w.execute)

		n := w.processBatch(maxBatchTasks)

		if n < maxBatchTasks {
			w.poller.Poll(idlePollTimeout)
		} else {
			w.poller.Poll(0)
		}
	}

	if w.group.cfg.OnWorkerStop != nil {
		w.group.cfg.OnWorkerStop(w.id)
	}

	log.Debug("worker stopped", zap.String("worker", name))
	close(w.done)
}

// processBatch drains up to max tasks from the worker's lane in FIFO order,
// stopping early when the lane is empty. Returns the number executed.
func (w *Worker) processBatch(max int) int {
	n := 0
	for ; n < max; n++ {
		t := w.lane.Pop()
		if t == nil {
			break
		}
		w.execute(t)
	}
	return n
}

// execute runs one task under the per-task panic boundary. A panicking task
// is counted, reported and dropped; it never unwinds into the run loop.
func (w *Worker) execute(t Task) {
	defer func() {
		if r := recover(); r != nil {
			w.tasksFailed.Add(1)
			if h := w.group.cfg.PanicHandler; h != nil {
				h(r)
				return
			}
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			w.group.log.Error("task panicked",
				zap.Int("worker", w.id),
				zap.Any("panic", r),
				zap.ByteString("stack", buf[:n]),
			)
		}
	}()

	t()
	w.tasksExecuted.Add(1)
}

// workerRegistry maps a worker goroutine's id to its Worker. Each entry is
// written once at worker start and removed at exit; between those points it
// is read-only. This is the goroutine-scoped stand-in for a thread-local
// self pointer.
var workerRegistry sync.Map

// Current returns the Worker executing the calling task or timer callback,
// or nil when the caller is not running on a worker goroutine. It is how a
// running task arms a timer on its own worker:
//
//	g.Post(func() {
//	    loom.Current().Schedule(50*time.Millisecond, followUp)
//	})
func Current() *Worker {
	if v, ok := workerRegistry.Load(goid()); ok {
		return v.(*Worker)
	}
	return nil
}

var goroutinePrefix = []byte("goroutine ")

// goid extracts the calling goroutine's id from its stack header. Confined
// to Current(); the hot push/pop path never needs it.
func goid() uint64 {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	s := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	id, _ := strconv.ParseUint(string(s), 10, 64)
	return id
}
