package synth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"pipelined.dev/synth/generator"
	"pipelined.dev/synth/graph"
	"pipelined.dev/synth/log"
	"pipelined.dev/synth/metric"
	"pipelined.dev/synth/reload"
	"pipelined.dev/synth/scheduler"
	"pipelined.dev/synth/signal"
	"pipelined.dev/synth/swap"
)

type (
	// ProcessFunc is the audio callback. It fills out with interleaved
	// frames and must be called from a single goroutine at a time.
	ProcessFunc = func(out []float32)

	// Backend drives the audio callback at the device cadence.
	Backend interface {
		// Open prepares the stream with provided format. The process
		// function is called for every device request after Start.
		Open(f signal.Format, process ProcessFunc) error
		Start() error
		// Stop stops the stream. No callbacks are made after it returns.
		Stop() error
		// Done is closed when the stream ends. A non-nil error is sent
		// before close if the device failed.
		Done() <-chan error
	}

	// Engine binds graph reloads to an audio backend.
	Engine struct {
		name    string
		format  signal.Format
		backend Backend
		log     log.Logger
		metric  *metric.Metric

		registry         *generator.Registry
		schedulerOptions []scheduler.Option
		retireCapacity   int
		reapInterval     time.Duration
		monitorInterval  time.Duration
		drainTimeout     time.Duration
		debounce         time.Duration

		swap      *swap.Coordinator
		scheduler *scheduler.Scheduler
		reload    *reload.Pipeline

		state atomic.Int32
		// folded counters, owned by the monitor goroutine while running.
		folded counters
	}

	// Status is a read-only snapshot of the engine.
	Status struct {
		Name   string
		State  string
		Format signal.Format
		// Scheduler is the state of the audio callback.
		Scheduler scheduler.State
		// Live is the id of the rendered graph, empty if none.
		Live     string
		Callback scheduler.Stats
		Swap     swap.Stats
		Reload   reload.Status
		Rendered time.Duration
	}

	counters struct {
		callback scheduler.Stats
		swap     swap.Stats
	}

	state int32
)

const (
	ready state = iota
	running
	stopped
)

func (s state) String() string {
	switch s {
	case ready:
		return "ready"
	case running:
		return "running"
	case stopped:
		return "stopped"
	}
	return "unknown"
}

// New creates an engine for the stream format. The backend is opened when
// Run is called.
func New(f signal.Format, b Backend, options ...Option) (*Engine, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}
	if b == nil {
		return nil, errors.New("backend is not provided")
	}
	e := Engine{
		format:          f,
		backend:         b,
		log:             log.Silent(),
		reapInterval:    DefaultReapInterval,
		monitorInterval: DefaultMonitorInterval,
		drainTimeout:    DefaultDrainTimeout,
	}
	for _, option := range options {
		option(&e)
	}
	if e.name == "" {
		e.name = xid.New().String()
	}
	if e.registry == nil {
		e.registry = generator.Builtin()
	}
	e.metric = metric.Meter(e.name)
	e.swap = swap.New(e.retireCapacity)
	e.scheduler = scheduler.New(f, e.swap, e.schedulerOptions...)
	e.reload = reload.New(f, e.swap,
		reload.WithLogger(e.log),
		reload.WithMetric(e.metric),
		reload.WithRegistry(e.registry),
	)
	return &e, nil
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return e.name
}

// Format returns the stream format.
func (e *Engine) Format() signal.Format {
	return e.format
}

// Registry returns generators available to graph descriptions.
func (e *Engine) Registry() *generator.Registry {
	return e.registry
}

// Load builds the description and submits it for adoption. Invalid
// descriptions are rejected and the live graph keeps playing. It returns
// the id of submitted graph instance.
func (e *Engine) Load(d graph.Description) (string, error) {
	return e.reload.Reload(d)
}

// LoadFile loads the project file, see project.Load.
func (e *Engine) LoadFile(ctx context.Context, path string) (string, error) {
	return e.reload.ReloadFile(ctx, path)
}

// Watch reloads the project file on every save until ctx is done.
func (e *Engine) Watch(ctx context.Context, path string) error {
	return e.reload.Watch(ctx, path, e.debounce)
}

// SetParam changes a parameter of the live graph. The new value is picked
// up at the next block boundary. Out-of-range values are accepted and
// clamped when read.
func (e *Engine) SetParam(nodeID, name string, v float64) (err error) {
	e.swap.View(func(live *graph.Instance) {
		if live == nil {
			err = fmt.Errorf("%w: no live graph", ErrInvalidState)
			return
		}
		if !live.HasNode(nodeID) {
			err = fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
			return
		}
		p, ok := live.Param(nodeID, name)
		if !ok {
			err = fmt.Errorf("%w: %s.%s", ErrUnknownParam, nodeID, name)
			return
		}
		if !p.InRange(v) {
			e.log.Debug(fmt.Sprintf("%s.%s = %v is out of range [%v, %v], will be clamped", nodeID, name, v, p.Min, p.Max))
		}
		p.Store(v)
	})
	return
}

// Params returns parameters of the live graph in render order. It returns
// nil if there is no live graph.
func (e *Engine) Params() (params []graph.NodeParams) {
	e.swap.View(func(live *graph.Instance) {
		if live != nil {
			params = live.Params()
		}
	})
	return
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	s := Status{
		Name:      e.name,
		State:     state(e.state.Load()).String(),
		Format:    e.format,
		Scheduler: e.scheduler.State(),
		Callback:  e.scheduler.Stats(),
		Swap:      e.swap.Stats(),
		Reload:    e.reload.Status(),
	}
	s.Rendered = e.format.SampleRate.DurationOf(int(s.Callback.Tick))
	e.swap.View(func(live *graph.Instance) {
		if live != nil {
			s.Live = live.ID()
		}
	})
	return s
}

// Run opens the backend and plays until ctx is done or the stream ends.
// On cancel the live graph is drained before the backend is stopped.
// Engine can be run only once, all graphs are destroyed when Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(ready), int32(running)) {
		return fmt.Errorf("%w: engine is %v", ErrInvalidState, state(e.state.Load()))
	}
	defer e.state.Store(int32(stopped))

	err := e.run(ctx)
	if serr := e.swap.Shutdown(); serr != nil {
		e.log.Warn(fmt.Sprintf("engine %s: destroy graphs: %v", e.name, serr))
	}
	e.fold()
	e.log.Info(fmt.Sprintf("engine %s stopped after %v", e.name, e.format.SampleRate.DurationOf(int(e.scheduler.Tick()))))
	return err
}

func (e *Engine) run(ctx context.Context) error {
	if err := e.backend.Open(e.format, e.scheduler.Process); err != nil {
		return e.deviceFailure("open", err)
	}
	if err := e.backend.Start(); err != nil {
		return e.deviceFailure("start", err)
	}
	e.log.Info(fmt.Sprintf("engine %s started: %d Hz, %d channels, block %d",
		e.name, e.format.SampleRate, e.format.Channels, e.format.BlockSize))

	background, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.reap(background)
	}()
	go func() {
		defer wg.Done()
		e.monitor(background)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	select {
	case err := <-e.backend.Done():
		e.stopBackend()
		if err != nil {
			return e.deviceFailure("stream", err)
		}
		e.log.Info(fmt.Sprintf("engine %s: stream ended", e.name))
		return nil
	case <-ctx.Done():
	}

	e.drain()
	if err := e.backend.Stop(); err != nil {
		return e.deviceFailure("stop", err)
	}
	return nil
}

// drain waits for the audio callback to retire the live graph.
func (e *Engine) drain() {
	e.scheduler.Drain()
	timeout := time.NewTimer(e.drainTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(e.format.BlockDuration())
	defer ticker.Stop()
	for !e.scheduler.Drained() {
		select {
		case <-timeout.C:
			e.log.Warn(fmt.Sprintf("engine %s: drain timed out after %v", e.name, e.drainTimeout))
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) stopBackend() {
	if err := e.backend.Stop(); err != nil {
		e.log.Debug(fmt.Sprintf("engine %s: stop backend: %v", e.name, err))
	}
}

func (e *Engine) deviceFailure(op string, err error) error {
	err = deviceError(op, err)
	e.log.Error(fmt.Sprintf("engine %s: %v", e.name, err))
	return err
}

// reap destroys retired graphs off the real-time path.
func (e *Engine) reap(ctx context.Context) {
	ticker := time.NewTicker(e.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.swap.DrainRetired()
			if err != nil {
				e.log.Warn(fmt.Sprintf("engine %s: destroy retired graphs: %v", e.name, err))
			} else if n > 0 {
				e.log.Debug(fmt.Sprintf("engine %s: destroyed %d retired graphs", e.name, n))
			}
		}
	}
}

// monitor periodically publishes callback counters.
func (e *Engine) monitor(ctx context.Context) {
	ticker := time.NewTicker(e.monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.fold()
		}
	}
}

// fold adds counter deltas since the last call to metrics and logs
// underruns and faults.
func (e *Engine) fold() {
	prev := e.folded
	cur := counters{
		callback: e.scheduler.Stats(),
		swap:     e.swap.Stats(),
	}
	e.folded = cur

	e.metric.Add(metric.BlockCounter, delta(cur.callback.Blocks, prev.callback.Blocks))
	e.metric.Add(metric.SilentCounter, delta(cur.callback.Silent, prev.callback.Silent))
	e.metric.Add(metric.SwapCounter, delta(cur.callback.Adoptions, prev.callback.Adoptions))
	e.metric.Add(metric.SupersededCounter, delta(cur.swap.Superseded, prev.swap.Superseded))
	e.metric.Add(metric.RetiredCounter, delta(cur.swap.Destroyed, prev.swap.Destroyed))
	e.metric.AddDuration(e.format.SampleRate.DurationOf(int(delta(cur.callback.Tick, prev.callback.Tick))))
	if n := delta(cur.callback.Underruns, prev.callback.Underruns); n > 0 {
		e.metric.Add(metric.UnderrunCounter, n)
		e.log.Warn(fmt.Sprintf("engine %s: %d blocks missed the deadline", e.name, n))
	}
	if n := delta(cur.callback.Faults, prev.callback.Faults); n > 0 {
		e.metric.Add(metric.FaultCounter, n)
		e.log.Error(fmt.Sprintf("engine %s: %d blocks aborted by generator panic", e.name, n))
	}
}

func delta(cur, prev uint64) int64 {
	return int64(cur - prev)
}
