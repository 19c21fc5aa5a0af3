package loom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// advanceTo steps the wheel to start+offset, collecting fired tasks' effects
// by simply invoking them.
func advanceTo(w *timerWheel, start time.Time, offset time.Duration) {
	w.advance(start.Add(offset), func(t Task) { t() })
}

// ============================================================================
// One-shot Timer Tests
// ============================================================================

func TestTimerWheel_FiresAtDueTick(t *testing.T) {
	start := time.Unix(0, 0)
	w := newTimerWheel(start)

	fired := false
	w.armOnce(5*time.Millisecond, func() { fired = true })

	advanceTo(w, start, 4*time.Millisecond)
	assert.False(t, fired, "must not fire before due tick")

	advanceTo(w, start, 5*time.Millisecond)
	assert.True(t, fired)
	assert.Equal(t, 0, w.pendingTimers())
}

func TestTimerWheel_ZeroDelayRoundsUpToOneTick(t *testing.T) {
	start := time.Unix(0, 0)
	w := newTimerWheel(start)

	fired := false
	w.armOnce(0, func() { fired = true })
	assert.Equal(t, 1, w.pendingTimers())

	advanceTo(w, start, time.Millisecond)
	assert.True(t, fired)
}

func TestTimerWheel_SubTickAdvanceIsNoop(t *testing.T) {
	start := time.Unix(0, 0)
	w := newTimerWheel(start)

	fired := false
	w.armOnce(time.Millisecond, func() { fired = true })

	advanceTo(w, start, 500*time.Microsecond)
	assert.False(t, fired)

	// Two sub-tick advances must still accumulate into a full tick.
	advanceTo(w, start, time.Millisecond)
	assert.True(t, fired)
}

func TestTimerWheel_WrapAroundBeyondSlotCount(t *testing.T) {
	start := time.Unix(0, 0)
	w := newTimerWheel(start)

	// Due tick is far beyond one wheel revolution; the node must survive
	// every intermediate pass over its bucket.
	delay := time.Duration(wheelSlots+44) * tickDuration
	fired := false
	w.armOnce(delay, func() { fired = true })

	advanceTo(w, start, delay-tickDuration)
	assert.False(t, fired)

	advanceTo(w, start, delay)
	assert.True(t, fired)
}

func TestTimerWheel_SameTickDeterministicOrder(t *testing.T) {
	start := time.Unix(0, 0)
	w := newTimerWheel(start)

	var order []string
	for _, name := range []string{"a", "b", "c", "d"} {
		name := name
		w.armOnce(3*time.Millisecond, func() { order = append(order, name) })
	}

	advanceTo(w, start, 10*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order, "same-tick timers fire in arm order")
}

func TestTimerWheel_CallbackMayArm(t *testing.T) {
	start := time.Unix(0, 0)
	w := newTimerWheel(start)

	var fires []int
	w.armOnce(time.Millisecond, func() {
		fires = append(fires, 1)
		w.armOnce(time.Millisecond, func() { fires = append(fires, 2) })
	})

	advanceTo(w, start, time.Millisecond)
	require.Equal(t, []int{1}, fires, "re-armed timer must not fire on the same advance tick")

	advanceTo(w, start, 2*time.Millisecond)
	assert.Equal(t, []int{1, 2}, fires)
}

// ============================================================================
// Periodic Timer Tests
// ============================================================================

func TestTimerWheel_PeriodicRefires(t *testing.T) {
	start := time.Unix(0, 0)
	w := newTimerWheel(start)

	count := 0
	w.armPeriodic(10*time.Millisecond, func() { count++ })

	advanceTo(w, start, 100*time.Millisecond)
	assert.Equal(t, 10, count)
	assert.Equal(t, 1, w.pendingTimers(), "periodic timer stays armed")
}

func TestTimerWheel_PeriodicSpacing(t *testing.T) {
	start := time.Unix(0, 0)
	w := newTimerWheel(start)

	var ticks []uint64
	w.armPeriodic(7*time.Millisecond, func() { ticks = append(ticks, w.tick) })

	advanceTo(w, start, 50*time.Millisecond)
	require.NotEmpty(t, ticks)
	for i := 1; i < len(ticks); i++ {
		assert.GreaterOrEqual(t, ticks[i]-ticks[i-1], uint64(7),
			"successive firings must be at least one period apart")
	}
}

func TestTimerWheel_MixedSameTick_PeriodicAndOneShot(t *testing.T) {
	start := time.Unix(0, 0)
	w := newTimerWheel(start)

	var order []string
	w.armPeriodic(4*time.Millisecond, func() { order = append(order, "p") })
	w.armOnce(4*time.Millisecond, func() { order = append(order, "o") })

	advanceTo(w, start, 4*time.Millisecond)
	assert.Equal(t, []string{"p", "o"}, order, "arm order decides same-tick sequence")
}
