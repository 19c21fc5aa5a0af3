package loom

import "go.uber.org/zap"

// Config carries the ambient knobs of a group. Worker count and queue
// capacity are positional constructor arguments, not config fields; the
// config covers injectable behavior only.
type Config struct {
	// PollerFactory supplies the idle-wait strategy per worker index.
	// Defaults to one shared sleep-based poller for the whole group.
	PollerFactory PollerFactory

	// Logger receives worker lifecycle events and panic reports.
	// Defaults to a no-op logger; the hot path never logs.
	Logger *zap.Logger

	// PanicHandler, if set, is invoked with the recovered value when a task
	// panics, instead of the default log-with-stack report.
	PanicHandler func(any)

	// OnWorkerStart is called on the worker's own goroutine before its first
	// loop iteration. Useful for tracing or per-thread setup.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called on the worker's own goroutine after its last
	// loop iteration, before the goroutine exits.
	OnWorkerStop func(workerID int)
}

func defaultConfig() Config {
	return Config{
		PollerFactory: defaultPollerFactory,
		Logger:        zap.NewNop(),
	}
}

func (c *Config) validate() error {
	if c.PollerFactory == nil {
		return errInvalidConfig("poller factory must not be nil")
	}
	if c.Logger == nil {
		return errInvalidConfig("logger must not be nil")
	}
	return nil
}
