// Package oto plays the engine with ebitengine/oto. Oto pulls samples
// from a reader on its own goroutine, the reader renders them on demand.
//
// Oto allows a single context per process, so a backend can be opened
// only once.
package oto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	oto3 "github.com/ebitengine/oto/v3"

	"pipelined.dev/synth"
	"pipelined.dev/synth/log"
	"pipelined.dev/synth/signal"
)

var _ synth.Backend = (*Backend)(nil)

const (
	// DefaultBufferSize is the device buffer duration.
	DefaultBufferSize = 20 * time.Millisecond
	errPollInterval   = 50 * time.Millisecond
	bytesPerSample    = 4
)

type (
	// Backend plays audio with oto default output device.
	Backend struct {
		log        log.Logger
		bufferSize time.Duration

		ctx    *oto3.Context
		player *oto3.Player
		reader *reader

		stop     chan struct{}
		stopOnce sync.Once
		wg       sync.WaitGroup
		done     chan error
		doneOnce sync.Once
	}

	// reader renders float32 little-endian frames for the player.
	reader struct {
		// mu is held by Read and taken by Stop, Read never waits for it.
		mu       sync.Mutex
		stopped  bool
		channels int
		process  synth.ProcessFunc
		samples  []float32
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

// WithBufferSize sets the device buffer duration.
func WithBufferSize(d time.Duration) Option {
	return func(b *Backend) {
		b.bufferSize = d
	}
}

// New returns a backend.
func New(options ...Option) *Backend {
	b := Backend{
		log:        log.Silent(),
		bufferSize: DefaultBufferSize,
		stop:       make(chan struct{}),
		done:       make(chan error, 1),
	}
	for _, option := range options {
		option(&b)
	}
	return &b
}

// Open creates oto context and waits until the device is ready.
func (b *Backend) Open(f signal.Format, process synth.ProcessFunc) error {
	ctx, ready, err := oto3.NewContext(&oto3.NewContextOptions{
		SampleRate:   int(f.SampleRate),
		ChannelCount: f.Channels,
		Format:       oto3.FormatFloat32LE,
		BufferSize:   b.bufferSize,
	})
	if err != nil {
		return fmt.Errorf("create oto context: %w", err)
	}
	<-ready
	b.ctx = ctx
	b.reader = newReader(f, process)
	b.player = ctx.NewPlayer(b.reader)
	return nil
}

func newReader(f signal.Format, process synth.ProcessFunc) *reader {
	return &reader{
		channels: f.Channels,
		process:  process,
		samples:  make([]float32, f.BlockSize*f.Channels),
	}
}

// Start starts playback and device error polling.
func (b *Backend) Start() error {
	if b.player == nil {
		return errors.New("player is not opened")
	}
	b.player.Play()
	b.wg.Add(1)
	go b.poll()
	return nil
}

// poll reports player errors as device failures.
func (b *Backend) poll() {
	defer b.wg.Done()
	ticker := time.NewTicker(errPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			if err := b.player.Err(); err != nil {
				b.finish(fmt.Errorf("oto player: %w", err))
				return
			}
			if err := b.ctx.Err(); err != nil {
				b.finish(fmt.Errorf("oto context: %w", err))
				return
			}
		}
	}
}

// Stop closes the player. No frames are rendered after it returns.
func (b *Backend) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	b.wg.Wait()
	var err error
	if b.reader != nil {
		b.reader.close()
	}
	if b.player != nil {
		err = b.player.Close()
		b.player = nil
	}
	b.finish(nil)
	return err
}

// Done implements synth.Backend.
func (b *Backend) Done() <-chan error {
	return b.done
}

func (b *Backend) finish(err error) {
	b.doneOnce.Do(func() {
		b.done <- err
		close(b.done)
	})
}

// Read renders as many whole frames as fit into p.
func (r *reader) Read(p []byte) (int, error) {
	frames := len(p) / (bytesPerSample * r.channels)
	if frames == 0 {
		return 0, nil
	}
	n := frames * r.channels * bytesPerSample
	if !r.mu.TryLock() {
		clear(p[:n])
		return n, nil
	}
	defer r.mu.Unlock()
	if r.stopped {
		clear(p[:n])
		return n, nil
	}
	size := frames * r.channels
	if cap(r.samples) < size {
		r.samples = make([]float32, size)
	}
	samples := r.samples[:size]
	r.process(samples)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(p[i*bytesPerSample:], math.Float32bits(v))
	}
	return n, nil
}

func (r *reader) close() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}
