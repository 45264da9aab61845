package mock_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/synth/generator"
	"pipelined.dev/synth/internal/mock"
	"pipelined.dev/synth/param"
	"pipelined.dev/synth/signal"
)

var errTest = errors.New("test error")

var format = signal.Format{SampleRate: 44100, Channels: 2, BlockSize: 4}

func TestGenerator(t *testing.T) {
	type params struct {
		blocks   int
		expected []float64
		err      error
	}
	testGenerator := func(m *mock.Generator, p params) func(*testing.T) {
		return func(t *testing.T) {
			def := m.Definition("mock", generator.Oscillator)
			g, err := def.New(generator.Config{Format: format, Params: param.NewSet(def.Params...)})
			if p.err != nil {
				assert.ErrorIs(t, err, p.err)
				return
			}
			require.NoError(t, err)
			out := signal.NewBuffer(format)
			for i := 0; i < p.blocks; i++ {
				g.Render(generator.Block{Frames: 3}, nil, out)
			}
			blocks, frames := m.Count()
			assert.Equal(t, p.blocks, blocks)
			assert.Equal(t, p.blocks*3, frames)
			if p.blocks > 0 {
				assert.Equal(t, p.expected, out.Channel(1, 3))
			}
			assert.Equal(t, 1, m.Created())
		}
	}

	t.Run("value", testGenerator(
		&mock.Generator{Value: 0.5},
		params{
			blocks:   2,
			expected: []float64{0.5, 0.5, 0.5},
		},
	))
	t.Run("no calls", testGenerator(
		&mock.Generator{},
		params{},
	))
	t.Run("error on new", testGenerator(
		&mock.Generator{ErrorOnNew: errTest},
		params{err: errTest},
	))
}

func TestGeneratorCost(t *testing.T) {
	clock := mock.Clock{}
	m := &mock.Generator{Clock: &clock, Cost: time.Millisecond}
	def := m.Definition("slow", generator.Oscillator)
	g, err := def.New(generator.Config{Format: format, Params: param.NewSet(def.Params...)})
	require.NoError(t, err)
	g.Render(generator.Block{Frames: 4}, nil, signal.NewBuffer(format))
	g.Render(generator.Block{Frames: 4}, nil, signal.NewBuffer(format))
	assert.Equal(t, 2*time.Millisecond, clock.Now())
}

func TestRegistry(t *testing.T) {
	m := &mock.Generator{}
	r := mock.Registry(m.Definition("mock", generator.Effect))
	_, ok := r.Lookup("mock")
	assert.True(t, ok)
	_, ok = r.Lookup("sine")
	assert.True(t, ok)
	assert.Panics(t, func() {
		mock.Registry(m.Definition("sine", generator.Effect))
	})
}

func TestBackend(t *testing.T) {
	var calls int
	b := mock.Backend{Record: true}
	require.NoError(t, b.Open(format, func(out []float32) {
		calls++
		for i := range out {
			out[i] = float32(calls)
		}
	}))
	assert.False(t, b.Tick(1))
	require.NoError(t, b.Start())
	assert.True(t, b.Tick(2))
	assert.Equal(t, 2, calls)
	assert.Len(t, b.Frames, 2*format.BlockSize*format.Channels)
	assert.Equal(t, float32(2), b.Frames[len(b.Frames)-1])

	b.Fail()
	assert.ErrorIs(t, <-b.Done(), mock.ErrDevice)
	// second finish is ignored
	require.NoError(t, b.Stop())
}
