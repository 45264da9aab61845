package synth

import (
	"time"

	"pipelined.dev/synth/generator"
	"pipelined.dev/synth/log"
	"pipelined.dev/synth/scheduler"
)

// Defaults for engine options.
const (
	DefaultReapInterval    = 100 * time.Millisecond
	DefaultMonitorInterval = time.Second
	DefaultDrainTimeout    = time.Second
)

// Option configures engine.
type Option func(*Engine)

// WithName sets the engine name. It's used as metrics component and in
// log messages. Random id is used by default.
func WithName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

// WithLogger sets logger to the engine and its reload pipeline.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithRegistry sets generator registry used to build graphs.
func WithRegistry(r *generator.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithBudget sets the share of block duration available to render a
// block, see scheduler.WithBudget.
func WithBudget(ratio float64) Option {
	return func(e *Engine) {
		e.schedulerOptions = append(e.schedulerOptions, scheduler.WithBudget(ratio))
	}
}

// WithClock sets the clock used to check render deadlines.
func WithClock(c scheduler.Clock) Option {
	return func(e *Engine) {
		e.schedulerOptions = append(e.schedulerOptions, scheduler.WithClock(c))
	}
}

// WithRetireCapacity sets the capacity of retirement ring.
func WithRetireCapacity(n int) Option {
	return func(e *Engine) {
		e.retireCapacity = n
	}
}

// WithReapInterval sets how often retired graphs are destroyed.
func WithReapInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.reapInterval = d
	}
}

// WithMonitorInterval sets how often callback counters are published.
func WithMonitorInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.monitorInterval = d
	}
}

// WithDrainTimeout limits how long Run waits for the live graph to be
// drained after cancel.
func WithDrainTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.drainTimeout = d
	}
}

// WithDebounce sets the delay between a file save and reload in Watch.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}
