// Package mock provides mocks for engine components and allows to execute integration tests.
package mock

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"pipelined.dev/synth/generator"
	"pipelined.dev/synth/param"
	"pipelined.dev/synth/signal"
)

// ValueParam is the parameter of mock generators. It's added to every
// output sample.
var ValueParam = param.Def{Name: "value", Default: 0, Min: -1, Max: 1}

// Generator mocks a generator.Generator. Counters are safe to read while
// the generator renders.
type Generator struct {
	counter
	// Value is written into every sample.
	Value float64
	// Clock is advanced by Cost on every render call to simulate slow
	// generators without sleeping.
	Clock *Clock
	Cost  time.Duration
	// Panic makes Render panic.
	Panic        bool
	PanicOnNew   bool
	ErrorOnNew   error
	ErrorOnClose error
	// Block makes constructor wait until it's closed.
	Block chan struct{}
	Hooks
}

// Hooks allows to check mock lifecycle calls.
type Hooks struct {
	blocked atomic.Int64
	created atomic.Int64
	closed  atomic.Int64
}

// Blocked returns the number of constructors waiting for Block.
func (h *Hooks) Blocked() int {
	return int(h.blocked.Load())
}

// Created returns the number of generators created from the mock definition.
func (h *Hooks) Created() int {
	return int(h.created.Load())
}

// Closed returns the number of Close calls.
func (h *Hooks) Closed() int {
	return int(h.closed.Load())
}

// Definition returns a generator definition of provided kind. Every node
// built from it renders through m.
func (m *Generator) Definition(name string, kind generator.Kind) generator.Definition {
	return generator.Definition{
		Name:   name,
		Kind:   kind,
		Params: []param.Def{ValueParam},
		New: func(c generator.Config) (generator.Generator, error) {
			if m.Block != nil {
				m.blocked.Add(1)
				<-m.Block
				m.blocked.Add(-1)
			}
			if m.PanicOnNew {
				panic("mock constructor panic")
			}
			if m.ErrorOnNew != nil {
				return nil, m.ErrorOnNew
			}
			m.created.Add(1)
			return &instance{mock: m, value: c.Params.Must(ValueParam.Name)}, nil
		},
	}
}

type instance struct {
	mock  *Generator
	value *param.Value
}

// Render fills the block with mock value plus value parameter.
func (g *instance) Render(b generator.Block, in []*signal.Buffer, out *signal.Buffer) {
	m := g.mock
	if m.Panic {
		panic("mock render panic")
	}
	if m.Clock != nil {
		m.Clock.Advance(m.Cost)
	}
	v := m.Value + g.value.Load()
	for c := 0; c < out.Channels(); c++ {
		dst := out.Channel(c, b.Frames)
		for i := range dst {
			dst[i] = v
		}
	}
	m.advance(b.Frames)
}

// Close implements io.Closer.
func (g *instance) Close() error {
	g.mock.closed.Add(1)
	return g.mock.ErrorOnClose
}

// Registry returns built-in registry extended with provided definitions.
func Registry(defs ...generator.Definition) *generator.Registry {
	r := generator.Builtin()
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// counter counts blocks and frames.
type counter struct {
	blocks atomic.Int64
	frames atomic.Int64
}

// advance counter's metrics.
func (c *counter) advance(size int) {
	c.blocks.Add(1)
	c.frames.Add(int64(size))
}

// Count returns blocks and frames metrics.
func (c *counter) Count() (int, int) {
	return int(c.blocks.Load()), int(c.frames.Load())
}

// Clock is a manual monotonic clock.
type Clock struct {
	now atomic.Int64
}

// Now returns current clock time.
func (c *Clock) Now() time.Duration {
	return time.Duration(c.now.Load())
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.now.Add(int64(d))
}

// ErrDevice is returned by Backend when Fail is called.
var ErrDevice = errors.New("mock device failure")

// Backend mocks an audio backend. Callbacks are driven by the test with
// Tick, no goroutines are started.
type Backend struct {
	mu      sync.Mutex
	format  signal.Format
	process func([]float32)
	buffer  []float32
	started bool
	done    chan error
	once    sync.Once

	ErrorOnOpen  error
	ErrorOnStart error
	// Frames keeps every frame rendered by Tick if Record is set.
	Record bool
	Frames []float32
}

// Open implements synth.Backend.
func (b *Backend) Open(f signal.Format, process func(out []float32)) error {
	if b.ErrorOnOpen != nil {
		return b.ErrorOnOpen
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.format = f
	b.process = process
	b.buffer = make([]float32, f.BlockSize*f.Channels)
	b.done = make(chan error, 1)
	return nil
}

// Start implements synth.Backend.
func (b *Backend) Start() error {
	if b.ErrorOnStart != nil {
		return b.ErrorOnStart
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = true
	return nil
}

// Stop implements synth.Backend.
func (b *Backend) Stop() error {
	b.mu.Lock()
	b.started = false
	b.mu.Unlock()
	b.finish(nil)
	return nil
}

// Done implements synth.Backend.
func (b *Backend) Done() <-chan error {
	return b.done
}

// Tick invokes the audio callback n times. It returns false if backend
// is not started.
func (b *Backend) Tick(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return false
	}
	for i := 0; i < n; i++ {
		b.process(b.buffer)
		if b.Record {
			b.Frames = append(b.Frames, b.buffer...)
		}
	}
	return true
}

// Fail simulates device loss.
func (b *Backend) Fail() {
	b.finish(ErrDevice)
}

func (b *Backend) finish(err error) {
	b.once.Do(func() {
		b.done <- err
		close(b.done)
	})
}
