package loom

import "time"

// Poller is the pluggable idle-wait strategy a worker invokes between
// batches: wait up to timeout for more work or external readiness. A zero
// timeout means "yield without sleeping". Implementations backed by an fd
// multiplexer can use the call to service I/O readiness on the worker's
// thread.
//
// A single Poller instance may be shared by several workers and must then
// tolerate concurrent Poll calls.
type Poller interface {
	Poll(timeout time.Duration)
}

// PollerFactory supplies the poller for each worker, keyed by worker index.
// Returning the same instance for every index shares one poller across the
// group.
type PollerFactory func(workerID int) Poller

// sleepPoller is the default strategy: plain sleep, naturally safe for
// concurrent use. One shared instance serves all groups.
type sleepPoller struct{}

func (sleepPoller) Poll(timeout time.Duration) {
	if timeout > 0 {
		time.Sleep(timeout)
	}
}

var defaultPoller Poller = sleepPoller{}

func defaultPollerFactory(int) Poller {
	return defaultPoller
}
