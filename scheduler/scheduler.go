// Package scheduler implements the audio callback. Backends call Process
// with an interleaved device buffer at the stream cadence.
//
// Process never blocks, allocates or locks. Swap adoption goes through
// the lock-free coordinator, counters are atomics and nothing is logged:
// observers read Stats from another goroutine.
package scheduler

import (
	"sync/atomic"
	"time"

	"pipelined.dev/synth/graph"
	"pipelined.dev/synth/signal"
	"pipelined.dev/synth/swap"
)

// State of the scheduler.
type State int32

// Scheduler states.
const (
	// Idle means there is no live graph, silence is emitted.
	Idle State = iota
	// Rendering means the live graph is rendered.
	Rendering
	// Draining means a stop was requested and the live graph is being
	// retired.
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	case Draining:
		return "draining"
	}
	return "unknown"
}

// Clock is a monotonic clock used to check render deadlines.
type Clock interface {
	Now() time.Duration
}

type monotonic struct {
	start time.Time
}

func (m monotonic) Now() time.Duration {
	return time.Since(m.start)
}

type (
	// Scheduler pulls blocks from the live graph.
	Scheduler struct {
		format signal.Format
		swap   *swap.Coordinator
		buffer *signal.Buffer
		clock  Clock
		// nanoseconds available to render a single frame
		frameBudget float64
		deadline    time.Duration
		expired     func() bool

		state atomic.Int32
		drain atomic.Bool
		tick  atomic.Uint64

		blocks    atomic.Uint64
		underruns atomic.Uint64
		faults    atomic.Uint64
		silent    atomic.Uint64
		adoptions atomic.Uint64
	}

	// Stats is a snapshot of scheduler counters.
	Stats struct {
		// Blocks rendered by the live graph.
		Blocks uint64
		// Underruns are blocks that missed the deadline.
		Underruns uint64
		// Faults are blocks aborted by a generator panic.
		Faults uint64
		// Silent blocks were emitted without a live graph.
		Silent    uint64
		Adoptions uint64
		// Tick is the time cursor in frames.
		Tick uint64
	}

	// Option configures scheduler.
	Option func(*Scheduler)
)

// DefaultBudget is the share of block duration available to render it.
const DefaultBudget = 1.0

// WithBudget sets the share of block duration available to render a
// block. Non-positive values are ignored.
func WithBudget(ratio float64) Option {
	return func(s *Scheduler) {
		if ratio > 0 {
			s.frameBudget = ratio * float64(time.Second) / float64(s.format.SampleRate)
		}
	}
}

// WithClock sets the clock used to check deadlines.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// New returns a scheduler for the stream format. All memory used by
// Process is allocated here.
func New(f signal.Format, c *swap.Coordinator, options ...Option) *Scheduler {
	s := Scheduler{
		format: f,
		swap:   c,
		buffer: signal.NewBuffer(f),
		clock:  monotonic{start: time.Now()},
	}
	WithBudget(DefaultBudget)(&s)
	for _, option := range options {
		option(&s)
	}
	s.expired = s.isExpired
	return &s
}

// Format returns the stream format.
func (s *Scheduler) Format() signal.Format {
	return s.format
}

// Process fills out with interleaved frames. Frames are rendered in
// blocks of at most the format block size. Samples that don't form a
// whole frame are zeroed.
func (s *Scheduler) Process(out []float32) {
	channels := s.format.Channels
	frames := len(out) / channels
	for offset := 0; offset < frames; {
		n := min(s.format.BlockSize, frames-offset)
		s.block(out[offset*channels:(offset+n)*channels], n)
		offset += n
	}
	clear(out[frames*channels:])
}

func (s *Scheduler) block(out []float32, frames int) {
	if s.drain.Load() {
		if State(s.state.Load()) != Idle {
			s.state.Store(int32(Draining))
			if s.swap.RetireLive() {
				s.state.Store(int32(Idle))
			}
		}
		s.silence(out, frames)
		return
	}

	live, adopted := s.swap.AdoptIfPending()
	if adopted {
		s.adoptions.Add(1)
	}
	if live == nil {
		s.state.Store(int32(Idle))
		s.silence(out, frames)
		return
	}
	s.state.Store(int32(Rendering))
	if !s.render(live, frames) {
		clear(out)
		s.tick.Add(uint64(frames))
		return
	}
	s.buffer.Interleave(out, frames)
	s.blocks.Add(1)
	s.tick.Add(uint64(frames))
}

func (s *Scheduler) silence(out []float32, frames int) {
	clear(out)
	s.silent.Add(1)
	s.tick.Add(uint64(frames))
}

// render returns false if the block must be discarded.
func (s *Scheduler) render(live *graph.Instance, frames int) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.faults.Add(1)
			ok = false
		}
	}()
	s.deadline = s.clock.Now() + time.Duration(float64(frames)*s.frameBudget)
	if !live.Render(s.tick.Load(), frames, s.buffer, s.expired) {
		s.underruns.Add(1)
		return false
	}
	return true
}

func (s *Scheduler) isExpired() bool {
	return s.clock.Now() > s.deadline
}

// Drain requests a stop. The next callback emits silence, retires the
// live graph and moves to Idle state.
func (s *Scheduler) Drain() {
	s.drain.Store(true)
}

// Drained returns true if drain was requested and completed.
func (s *Scheduler) Drained() bool {
	return s.drain.Load() && s.State() == Idle
}

// State returns current state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Tick returns the time cursor in frames since the stream was opened.
func (s *Scheduler) Tick() uint64 {
	return s.tick.Load()
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Blocks:    s.blocks.Load(),
		Underruns: s.underruns.Load(),
		Faults:    s.faults.Load(),
		Silent:    s.silent.Load(),
		Adoptions: s.adoptions.Load(),
		Tick:      s.tick.Load(),
	}
}
