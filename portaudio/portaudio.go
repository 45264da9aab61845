// Package portaudio plays the engine through the default output device.
//
// The stream is opened in blocking mode. A dedicated goroutine locked to
// its OS thread renders a block and writes it to the device, so the device
// paces the audio callback.
package portaudio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"pipelined.dev/synth"
	"pipelined.dev/synth/internal/rt"
	"pipelined.dev/synth/log"
	"pipelined.dev/synth/signal"
)

var _ synth.Backend = (*Backend)(nil)

type (
	// Backend plays audio with portaudio default output device.
	Backend struct {
		log log.Logger

		process synth.ProcessFunc
		buf     []float32
		stream  *portaudio.Stream

		stop       chan struct{}
		stopOnce   sync.Once
		wg         sync.WaitGroup
		done       chan error
		doneOnce   sync.Once
		underflows atomic.Uint64
	}

	// Option configures backend.
	Option func(*Backend)
)

// WithLogger sets logger to the backend.
func WithLogger(l log.Logger) Option {
	return func(b *Backend) {
		b.log = l
	}
}

// New returns a backend. Portaudio is initialized when the backend is
// opened.
func New(options ...Option) *Backend {
	b := Backend{
		log:  log.Silent(),
		stop: make(chan struct{}),
		done: make(chan error, 1),
	}
	for _, option := range options {
		option(&b)
	}
	return &b
}

// Open initializes portaudio and opens the default output stream.
func (b *Backend) Open(f signal.Format, process synth.ProcessFunc) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	b.process = process
	b.buf = make([]float32, f.BlockSize*f.Channels)
	stream, err := portaudio.OpenDefaultStream(0, f.Channels, float64(f.SampleRate), f.BlockSize, &b.buf)
	if err != nil {
		return errors.Join(fmt.Errorf("open default stream: %w", err), portaudio.Terminate())
	}
	b.stream = stream
	b.log.Debug(fmt.Sprintf("portaudio stream opened: %v", portaudio.VersionText()))
	return nil
}

// Start starts the stream and the write loop.
func (b *Backend) Start() error {
	if b.stream == nil {
		return errors.New("stream is not opened")
	}
	if err := b.stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	b.wg.Add(1)
	go b.write()
	return nil
}

func (b *Backend) write() {
	defer b.wg.Done()
	unlock, err := rt.LockThread()
	defer unlock()
	if err != nil {
		b.log.Debug(fmt.Sprintf("audio thread keeps default priority: %v", err))
	}
	for {
		select {
		case <-b.stop:
			return
		default:
		}
		b.process(b.buf)
		if err := b.stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				b.underflows.Add(1)
				continue
			}
			b.finish(fmt.Errorf("write stream: %w", err))
			return
		}
	}
}

// Stop waits for the write loop to exit, closes the stream and
// terminates portaudio.
func (b *Backend) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	b.wg.Wait()
	if b.stream == nil {
		b.finish(nil)
		return nil
	}
	err := errors.Join(b.stream.Stop(), b.stream.Close(), portaudio.Terminate())
	b.stream = nil
	if n := b.underflows.Load(); n > 0 {
		b.log.Info(fmt.Sprintf("portaudio reported %d output underflows", n))
	}
	b.finish(nil)
	return err
}

// Done implements synth.Backend.
func (b *Backend) Done() <-chan error {
	return b.done
}

// Underflows returns the number of writes the device reported as late.
func (b *Backend) Underflows() uint64 {
	return b.underflows.Load()
}

func (b *Backend) finish(err error) {
	b.doneOnce.Do(func() {
		b.done <- err
		close(b.done)
	})
}
