package loom

import (
	"sync/atomic"
	"time"
)

const (
	// tickDuration is the wheel's resolution: 1000 ticks per second.
	tickDuration = time.Millisecond

	// wheelSlots is the number of hash buckets. Must be a power of two.
	wheelSlots = 256
)

// timerNode is one armed timer. period is zero for one-shot timers and the
// repeat interval in ticks otherwise.
type timerNode struct {
	due    uint64
	seq    uint64
	period uint64
	fn     Task
}

// timerWheel is a hashed timing wheel confined to a single worker goroutine:
// it is armed by tasks running on that worker and advanced by the worker's
// own run loop, so it needs no synchronization (pending is atomic only so
// stats snapshots can read it from outside).
//
// Timers sharing a due tick fire in arm order; seq makes that order
// deterministic, including across periodic re-arms.
type timerWheel struct {
	buckets [wheelSlots][]*timerNode
	tick    uint64
	seq     uint64
	last    time.Time
	pending atomic.Int64
}

func newTimerWheel(now time.Time) *timerWheel {
	return &timerWheel{last: now}
}

// armOnce schedules fn to fire once after d. Sub-tick delays round up to one
// tick, so a zero delay still waits for the next advance.
func (w *timerWheel) armOnce(d time.Duration, fn Task) {
	w.arm(w.durationToTicks(d), 0, fn)
}

// armPeriodic schedules fn to fire every period, first firing one period from
// now. Successive firings are at least one period apart.
func (w *timerWheel) armPeriodic(period time.Duration, fn Task) {
	ticks := w.durationToTicks(period)
	w.arm(ticks, ticks, fn)
}

func (w *timerWheel) durationToTicks(d time.Duration) uint64 {
	if d <= 0 {
		return 1
	}
	return uint64((d + tickDuration - 1) / tickDuration)
}

func (w *timerWheel) arm(delayTicks, periodTicks uint64, fn Task) {
	if delayTicks == 0 {
		delayTicks = 1
	}
	node := &timerNode{
		due:    w.tick + delayTicks,
		seq:    w.seq,
		period: periodTicks,
		fn:     fn,
	}
	w.seq++
	w.insert(node)
	w.pending.Add(1)
}

func (w *timerWheel) insert(node *timerNode) {
	idx := node.due & (wheelSlots - 1)
	w.buckets[idx] = append(w.buckets[idx], node)
}

// advance moves the wheel forward to now, invoking exec for every timer whose
// due tick has passed, tick by tick and in arm order within a tick. exec runs
// synchronously on the calling goroutine; callbacks may arm new timers.
func (w *timerWheel) advance(now time.Time, exec func(Task)) {
	elapsed := now.Sub(w.last)
	if elapsed < tickDuration {
		return
	}
	ticks := uint64(elapsed / tickDuration)
	w.last = w.last.Add(time.Duration(ticks) * tickDuration)

	for i := uint64(0); i < ticks; i++ {
		w.tick++
		w.fire(exec)
	}
}

// fire expires the current tick's bucket. Due nodes are unlinked before any
// callback runs, so callbacks that re-arm into this bucket land in the
// retained slice and are not observed twice.
func (w *timerWheel) fire(exec func(Task)) {
	idx := w.tick & (wheelSlots - 1)
	bucket := w.buckets[idx]
	if len(bucket) == 0 {
		return
	}

	var due []*timerNode
	keep := bucket[:0]
	for _, node := range bucket {
		if node.due <= w.tick {
			due = append(due, node)
		} else {
			keep = append(keep, node)
		}
	}
	w.buckets[idx] = keep

	for _, node := range due {
		exec(node.fn)
		if node.period > 0 {
			// Re-arm with a fresh sequence number to keep same-tick
			// ordering deterministic on later rounds.
			node.due = w.tick + node.period
			node.seq = w.seq
			w.seq++
			w.insert(node)
		} else {
			w.pending.Add(-1)
		}
	}
}

// pendingTimers returns the number of armed, not-yet-expired one-shot timers
// plus all periodic timers. Safe to call from any goroutine.
func (w *timerWheel) pendingTimers() int {
	return int(w.pending.Load())
}
