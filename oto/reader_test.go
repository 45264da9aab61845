package oto

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/synth/signal"
)

func TestReader(t *testing.T) {
	f := signal.Format{SampleRate: 44100, Channels: 2, BlockSize: 4}
	var calls int
	r := newReader(f, func(out []float32) {
		calls++
		for i := range out {
			out[i] = float32(i) / 10
		}
	})

	tests := []struct {
		size     int
		expected int
	}{
		{size: 32, expected: 32},
		// partial frame is left for the next read
		{size: 35, expected: 32},
		// larger than a block
		{size: 128, expected: 128},
		{size: 4, expected: 0},
	}
	for _, test := range tests {
		p := make([]byte, test.size)
		n, err := r.Read(p)
		assert.NoError(t, err)
		assert.Equal(t, test.expected, n)
		for i := 0; i < n/4; i++ {
			v := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
			assert.Equal(t, float32(i)/10, v)
		}
	}
	assert.Equal(t, 3, calls)

	r.close()
	p := make([]byte, 16)
	p[0] = 1
	n, err := r.Read(p)
	assert.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, make([]byte, 16), p)
	assert.Equal(t, 3, calls)
}
