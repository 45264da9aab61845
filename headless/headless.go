// Package headless drives the engine without an audio device. Blocks are
// rendered on a goroutine, either paced at the stream rate or as fast as
// possible. It's used on machines without sound and in tests.
package headless

import (
	"sync"
	"sync/atomic"
	"time"

	"pipelined.dev/synth"
	"pipelined.dev/synth/signal"
)

var _ synth.Backend = (*Backend)(nil)

type (
	// Backend renders blocks on a goroutine.
	Backend struct {
		tap     func(block []float32)
		limit   uint64
		unpaced bool

		format  signal.Format
		process synth.ProcessFunc
		buf     []float32
		blocks  atomic.Uint64

		stop     chan struct{}
		stopOnce sync.Once
		wg       sync.WaitGroup
		done     chan error
		doneOnce sync.Once
	}

	// Option configures backend.
	Option func(*Backend)
)

// WithTap calls fn with every rendered block. The block is reused, fn
// must copy what it keeps.
func WithTap(fn func(block []float32)) Option {
	return func(b *Backend) {
		b.tap = fn
	}
}

// WithBlocks ends the stream after n blocks.
func WithBlocks(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.limit = uint64(n)
		}
	}
}

// Unpaced renders blocks as fast as possible.
func Unpaced() Option {
	return func(b *Backend) {
		b.unpaced = true
	}
}

// New returns a backend.
func New(options ...Option) *Backend {
	b := Backend{
		stop: make(chan struct{}),
		done: make(chan error, 1),
	}
	for _, option := range options {
		option(&b)
	}
	return &b
}

// Open allocates the block buffer.
func (b *Backend) Open(f signal.Format, process synth.ProcessFunc) error {
	b.format = f
	b.process = process
	b.buf = make([]float32, f.BlockSize*f.Channels)
	return nil
}

// Start starts rendering.
func (b *Backend) Start() error {
	b.wg.Add(1)
	go b.run()
	return nil
}

func (b *Backend) run() {
	defer b.wg.Done()
	var pace <-chan time.Time
	if !b.unpaced {
		ticker := time.NewTicker(b.format.BlockDuration())
		defer ticker.Stop()
		pace = ticker.C
	}
	for {
		if pace != nil {
			select {
			case <-b.stop:
				return
			case <-pace:
			}
		} else {
			select {
			case <-b.stop:
				return
			default:
			}
		}
		b.process(b.buf)
		if b.tap != nil {
			b.tap(b.buf)
		}
		if n := b.blocks.Add(1); b.limit > 0 && n >= b.limit {
			b.finish(nil)
			return
		}
	}
}

// Stop waits for the render goroutine to exit.
func (b *Backend) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	b.wg.Wait()
	b.finish(nil)
	return nil
}

// Done implements synth.Backend.
func (b *Backend) Done() <-chan error {
	return b.done
}

// Blocks returns number of rendered blocks.
func (b *Backend) Blocks() int {
	return int(b.blocks.Load())
}

func (b *Backend) finish(err error) {
	b.doneOnce.Do(func() {
		b.done <- err
		close(b.done)
	})
}
