package signal_test

import (
	"math"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/stretchr/testify/assert"

	"pipelined.dev/synth/signal"
)

var stereo = signal.Format{
	SampleRate: 48000,
	Channels:   2,
	BlockSize:  4,
}

func fill(b *signal.Buffer, values ...[]float64) {
	for c := range values {
		copy(b.Channel(c, b.Cap()), values[c])
	}
}

func TestBufferLayout(t *testing.T) {
	b := signal.NewBuffer(stereo)
	assert.Equal(t, 2, b.Channels())
	assert.Equal(t, 4, b.Cap())
	assert.Equal(t, signal.SampleRate(48000), b.SampleRate())

	b.SetWritten(10)
	assert.Equal(t, 4, b.Written())
	b.SetWritten(-1)
	assert.Equal(t, 0, b.Written())

	// writing into one channel must not leak into another
	fill(b, []float64{1, 1, 1, 1})
	assert.Equal(t, []float64{0, 0, 0, 0}, b.Channel(1, 4))
}

func TestBufferZero(t *testing.T) {
	b := signal.NewBuffer(stereo)
	fill(b, []float64{1, 2, 3, 4}, []float64{5, 6, 7, 8})
	b.Zero(1, 3)
	assert.Equal(t, []float64{1, 0, 0, 4}, b.Channel(0, 4))
	assert.Equal(t, []float64{5, 0, 0, 8}, b.Channel(1, 4))
	b.Zero(3, 100)
	assert.Equal(t, []float64{1, 0, 0, 0}, b.Channel(0, 4))
}

func TestBufferCopyFrom(t *testing.T) {
	mono := signal.NewBuffer(signal.Format{SampleRate: 48000, Channels: 1, BlockSize: 4})
	fill(mono, []float64{0.1, 0.2, 0.3, 0.4})
	b := signal.NewBuffer(stereo)
	b.CopyFrom(mono, 3)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0}, b.Channel(0, 4))
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0}, b.Channel(1, 4))
}

func TestBufferInterleave(t *testing.T) {
	tests := []struct {
		description string
		dst         []float32
		frames      int
		written     int
		expected    []float32
	}{
		{
			description: "full block",
			dst:         make([]float32, 8),
			frames:      4,
			written:     4,
			expected:    []float32{1, 5, 2, 6, 3, 7, 4, 8},
		},
		{
			description: "short destination",
			dst:         make([]float32, 3),
			frames:      4,
			written:     1,
			expected:    []float32{1, 5, 0},
		},
		{
			description: "partial block",
			dst:         make([]float32, 8),
			frames:      2,
			written:     2,
			expected:    []float32{1, 5, 2, 6, 0, 0, 0, 0},
		},
	}
	b := signal.NewBuffer(stereo)
	fill(b, []float64{1, 2, 3, 4}, []float64{5, 6, 7, 8})
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			n := b.Interleave(test.dst, test.frames)
			assert.Equal(t, test.written, n)
			assert.Equal(t, test.expected, test.dst)
		})
	}
}

func TestBufferAsGoAudio(t *testing.T) {
	b := signal.NewBuffer(stereo)
	fill(b, []float64{1, -1, 0.5, 2}, []float64{0, 0, 0, -2})

	var fb audio.FloatBuffer
	b.AsFloatBuffer(&fb, 2)
	assert.Equal(t, []float64{1, 0, -1, 0}, fb.Data)
	assert.Equal(t, 2, fb.Format.NumChannels)
	assert.Equal(t, 48000, fb.Format.SampleRate)

	var ib audio.IntBuffer
	b.AsIntBuffer(&ib, 4, signal.BitDepth16)
	assert.Equal(t, []int{
		math.MaxInt16, 0,
		-math.MaxInt16, 0,
		math.MaxInt16 / 2, 0,
		math.MaxInt16, -math.MaxInt16,
	}, ib.Data)
	assert.Equal(t, 16, ib.SourceBitDepth)
}

func TestFormat(t *testing.T) {
	assert.NoError(t, stereo.Validate())
	assert.Error(t, signal.Format{Channels: 1, BlockSize: 1}.Validate())
	assert.Error(t, signal.Format{SampleRate: 1, BlockSize: 1}.Validate())
	assert.Error(t, signal.Format{SampleRate: 1, Channels: 1}.Validate())

	f := signal.Format{SampleRate: 48000, Channels: 2, BlockSize: 480}
	assert.Equal(t, 10*time.Millisecond, f.BlockDuration())
	assert.Equal(t, time.Second, signal.SampleRate(44100).DurationOf(44100))
}

func TestQuantize(t *testing.T) {
	tests := []struct {
		bitDepth signal.BitDepth
		value    float64
		expected int
	}{
		{signal.BitDepth8, 1, math.MaxInt8},
		{signal.BitDepth16, -1, -math.MaxInt16},
		{signal.BitDepth16, 3, math.MaxInt16},
		{signal.BitDepth24, -0.5, -(1<<23 - 1) / 2},
		{signal.BitDepth32, 0, 0},
		{signal.BitDepth16, math.NaN(), 0},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, test.bitDepth.Quantize(test.value))
	}
}
