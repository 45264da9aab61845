// Package signal provides the sample buffer shared between the audio
// callback and the generator graph. It allows to:
//	- hold planar float64 frames with a fixed layout
//	- interleave frames into float32 device buffers
//	- convert frames to go-audio buffers with a given bit depth
package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/go-audio/audio"
)

type (
	// SampleRate is the number of frames per second.
	SampleRate uint

	// BitDepth contains values required for int-to-float and backward conversion.
	BitDepth uint

	// Format is the stream layout fixed at stream-open time.
	Format struct {
		SampleRate SampleRate
		Channels   int
		// BlockSize is the number of frames requested per callback.
		BlockSize int
	}
)

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// multiplier is used when float to int conversion is done.
func (b BitDepth) multiplier() float64 {
	switch b {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// Quantize clips v to [-1, 1] and scales it to an integer sample. NaN
// is quantized to zero.
func (b BitDepth) Quantize(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Max(-1, math.Min(1, v)) * b.multiplier())
}

// DurationOf returns time duration of samples at this sample rate.
func (rate SampleRate) DurationOf(samples int) time.Duration {
	return time.Duration(math.Round(float64(samples) / float64(rate) * float64(time.Second)))
}

// Validate returns an error if the format cannot be used to open a stream.
func (f Format) Validate() error {
	switch {
	case f.SampleRate == 0:
		return fmt.Errorf("sample rate must be positive")
	case f.Channels <= 0:
		return fmt.Errorf("channels must be positive: %d", f.Channels)
	case f.BlockSize <= 0:
		return fmt.Errorf("block size must be positive: %d", f.BlockSize)
	}
	return nil
}

// BlockDuration returns the duration of a single block.
func (f Format) BlockDuration() time.Duration {
	return f.SampleRate.DurationOf(f.BlockSize)
}

// Buffer is a planar float64 frame buffer. Capacity, channels and sample
// rate never change after creation. Buffers are reused across blocks.
type Buffer struct {
	data       [][]float64
	sampleRate SampleRate
	written    int
}

// NewBuffer allocates a buffer for the provided format. Capacity is equal
// to the block size of the format.
func NewBuffer(f Format) *Buffer {
	data := make([][]float64, f.Channels)
	backing := make([]float64, f.Channels*f.BlockSize)
	for i := range data {
		data[i] = backing[i*f.BlockSize : (i+1)*f.BlockSize : (i+1)*f.BlockSize]
	}
	return &Buffer{
		data:       data,
		sampleRate: f.SampleRate,
	}
}

// Channels returns number of channels.
func (b *Buffer) Channels() int {
	return len(b.data)
}

// Cap returns number of frames the buffer can hold.
func (b *Buffer) Cap() int {
	if len(b.data) == 0 {
		return 0
	}
	return cap(b.data[0])
}

// SampleRate of the buffer.
func (b *Buffer) SampleRate() SampleRate {
	return b.sampleRate
}

// Written returns number of frames written in the current block.
func (b *Buffer) Written() int {
	return b.written
}

// SetWritten moves the write cursor. It's capped by the capacity.
func (b *Buffer) SetWritten(n int) {
	b.written = clampFrames(n, b.Cap())
}

// Channel returns the samples of the channel limited to n frames.
func (b *Buffer) Channel(c, n int) []float64 {
	return b.data[c][:clampFrames(n, b.Cap())]
}

// Zero fills frames [from, to) of every channel with zeros.
func (b *Buffer) Zero(from, to int) {
	to = clampFrames(to, b.Cap())
	if from >= to {
		return
	}
	for c := range b.data {
		clear(b.data[c][from:to])
	}
}

// CopyFrom copies n frames of src into the buffer. Channels are matched
// by index; missing source channels are filled from the last one, so a
// mono source is spread across all channels.
func (b *Buffer) CopyFrom(src *Buffer, n int) {
	n = clampFrames(n, min(b.Cap(), src.Cap()))
	if src.Channels() == 0 {
		b.Zero(0, n)
		return
	}
	for c := range b.data {
		sc := min(c, src.Channels()-1)
		copy(b.data[c][:n], src.data[sc][:n])
	}
}

// Interleave writes first n frames into interleaved float32 slice. It
// returns number of frames written.
func (b *Buffer) Interleave(dst []float32, n int) int {
	channels := b.Channels()
	if channels == 0 {
		return 0
	}
	n = clampFrames(n, min(b.Cap(), len(dst)/channels))
	for c := range b.data {
		src := b.data[c]
		for i := 0; i < n; i++ {
			dst[i*channels+c] = float32(src[i])
		}
	}
	return n
}

// AsFloatBuffer writes first n frames into go-audio float buffer. Buffer
// data is reused if it has enough capacity.
func (b *Buffer) AsFloatBuffer(dst *audio.FloatBuffer, n int) {
	n = clampFrames(n, b.Cap())
	channels := b.Channels()
	size := n * channels
	if cap(dst.Data) < size {
		dst.Data = make([]float64, size)
	}
	dst.Data = dst.Data[:size]
	dst.Format = &audio.Format{
		NumChannels: channels,
		SampleRate:  int(b.sampleRate),
	}
	for c := range b.data {
		for i := 0; i < n; i++ {
			dst.Data[i*channels+c] = b.data[c][i]
		}
	}
}

// AsIntBuffer writes first n frames into go-audio int buffer with
// provided bit depth. Samples are clipped to [-1, 1].
func (b *Buffer) AsIntBuffer(dst *audio.IntBuffer, n int, bitDepth BitDepth) {
	n = clampFrames(n, b.Cap())
	channels := b.Channels()
	size := n * channels
	if cap(dst.Data) < size {
		dst.Data = make([]int, size)
	}
	dst.Data = dst.Data[:size]
	dst.Format = &audio.Format{
		NumChannels: channels,
		SampleRate:  int(b.sampleRate),
	}
	dst.SourceBitDepth = int(bitDepth)
	for c := range b.data {
		for i := 0; i < n; i++ {
			dst.Data[i*channels+c] = bitDepth.Quantize(b.data[c][i])
		}
	}
}

func clampFrames(n, limit int) int {
	if n < 0 {
		return 0
	}
	if n > limit {
		return limit
	}
	return n
}
