// Package wav bounces the engine into a wav file. Blocks are rendered as
// fast as possible until the requested duration is written, then the
// stream ends.
package wav

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pipelined.dev/synth"
	"pipelined.dev/synth/signal"
)

var _ synth.Backend = (*Backend)(nil)

// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
var ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")

// pcm is the wav audio format for integer samples.
const pcm = 1

// Backend renders a fixed duration into a wav file.
type Backend struct {
	path     string
	duration time.Duration
	bitDepth signal.BitDepth

	format  signal.Format
	process synth.ProcessFunc
	buf     []float32
	ib      *audio.IntBuffer
	file    *os.File
	encoder *wav.Encoder
	frames  int
	running bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	done     chan error
	doneOnce sync.Once
}

// New returns a backend that writes duration of signal into the file at
// path.
func New(path string, duration time.Duration, bitDepth signal.BitDepth) (*Backend, error) {
	switch bitDepth {
	case signal.BitDepth16, signal.BitDepth24, signal.BitDepth32:
	default:
		return nil, ErrUnsupportedBitDepth
	}
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive: %v", duration)
	}
	return &Backend{
		path:     path,
		duration: duration,
		bitDepth: bitDepth,
		stop:     make(chan struct{}),
		done:     make(chan error, 1),
	}, nil
}

// Open creates the file and the encoder.
func (b *Backend) Open(f signal.Format, process synth.ProcessFunc) error {
	file, err := os.Create(b.path)
	if err != nil {
		return err
	}
	b.file = file
	b.encoder = wav.NewEncoder(file, int(f.SampleRate), int(b.bitDepth), f.Channels, pcm)
	b.format = f
	b.process = process
	b.buf = make([]float32, f.BlockSize*f.Channels)
	b.ib = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: f.Channels,
			SampleRate:  int(f.SampleRate),
		},
		Data:           make([]int, f.BlockSize*f.Channels),
		SourceBitDepth: int(b.bitDepth),
	}
	b.frames = int(time.Duration(f.SampleRate) * b.duration / time.Second)
	return nil
}

// Start starts rendering.
func (b *Backend) Start() error {
	if b.encoder == nil {
		return errors.New("file is not opened")
	}
	b.running = true
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := b.render()
		b.finish(errors.Join(err, b.close()))
	}()
	return nil
}

func (b *Backend) render() error {
	channels := b.format.Channels
	for written := 0; written < b.frames; {
		select {
		case <-b.stop:
			return nil
		default:
		}
		n := min(b.format.BlockSize, b.frames-written)
		out := b.buf[:n*channels]
		b.process(out)
		b.ib.Data = b.ib.Data[:len(out)]
		for i, v := range out {
			b.ib.Data[i] = b.bitDepth.Quantize(float64(v))
		}
		if err := b.encoder.Write(b.ib); err != nil {
			return fmt.Errorf("write %s: %w", b.path, err)
		}
		written += n
	}
	return nil
}

// close finalizes wav headers.
func (b *Backend) close() error {
	return errors.Join(b.encoder.Close(), b.file.Close())
}

// Stop interrupts rendering. The file contains what was rendered so far.
func (b *Backend) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	b.wg.Wait()
	// the render goroutine closes the file if it was started
	if b.encoder != nil && !b.running {
		b.finish(b.close())
	}
	b.finish(nil)
	return nil
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
