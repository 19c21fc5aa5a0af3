package loom

import "go.uber.org/zap"

// Option configures a Group.
type Option func(*Config)

// WithPollerFactory injects the idle-wait strategy per worker index. The
// factory is called once per worker during construction; returning a shared
// instance (for example one fd multiplexer for the whole group) is allowed,
// and that instance must then tolerate concurrent Poll calls.
func WithPollerFactory(f PollerFactory) Option {
	return func(c *Config) {
		if f != nil {
			c.PollerFactory = f
		}
	}
}

// WithPoller shares a single poller instance across all workers.
func WithPoller(p Poller) Option {
	return func(c *Config) {
		if p != nil {
			c.PollerFactory = func(int) Poller { return p }
		}
	}
}

// WithLogger sets the logger for worker lifecycle events and panic reports.
func WithLogger(log *zap.Logger) Option {
	return func(c *Config) {
		if log != nil {
			c.Logger = log
		}
	}
}

// WithPanicHandler sets the handler invoked when a task panics. The handler
// runs on the worker goroutine that executed the task.
func WithPanicHandler(h func(any)) Option {
	return func(c *Config) {
		c.PanicHandler = h
	}
}

// WithWorkerHooks sets callbacks invoked on each worker's own goroutine when
// it starts and stops. Either hook may be nil.
func WithWorkerHooks(onStart, onStop func(workerID int)) Option {
	return func(c *Config) {
		c.OnWorkerStart = onStart
		c.OnWorkerStop = onStop
	}
}
