package wav_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gowav "github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/synth"
	"pipelined.dev/synth/graph"
	"pipelined.dev/synth/internal/mock"
	"pipelined.dev/synth/signal"
	"pipelined.dev/synth/wav"
)

var format = signal.Format{SampleRate: 44100, Channels: 2, BlockSize: 256}

func decode(t *testing.T, path string) *gowav.Decoder {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	d := gowav.NewDecoder(f)
	require.True(t, d.IsValidFile())
	return d
}

func TestBounce(t *testing.T) {
	defer goleak.VerifyNone(t)
	tests := []struct {
		bitDepth signal.BitDepth
		duration time.Duration
		frames   int
	}{
		{bitDepth: signal.BitDepth16, duration: 500 * time.Millisecond, frames: 22050},
		{bitDepth: signal.BitDepth24, duration: 10 * time.Millisecond, frames: 441},
		{bitDepth: signal.BitDepth32, duration: time.Second, frames: 44100},
	}
	for _, test := range tests {
		path := filepath.Join(t.TempDir(), "bounce.wav")
		b, err := wav.New(path, test.duration, test.bitDepth)
		require.NoError(t, err)
		e, err := synth.New(format, b, synth.WithClock(&mock.Clock{}))
		require.NoError(t, err)
		_, err = e.Load(graph.Description{
			Nodes:  []graph.NodeSpec{{ID: "osc", Type: "square"}},
			Output: "osc",
		})
		require.NoError(t, err)
		require.NoError(t, e.Run(context.Background()))

		d := decode(t, path)
		buf, err := d.FullPCMBuffer()
		require.NoError(t, err)
		assert.Equal(t, int(test.bitDepth), int(d.BitDepth))
		assert.Equal(t, format.Channels, buf.Format.NumChannels)
		assert.Equal(t, int(format.SampleRate), buf.Format.SampleRate)
		assert.Equal(t, test.frames*format.Channels, len(buf.Data))
		// full scale square wave
		assert.Equal(t, test.bitDepth.Quantize(1), buf.Data[0])
	}
}

func TestStopBeforeStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	b, err := wav.New(path, time.Second, signal.BitDepth16)
	require.NoError(t, err)
	require.NoError(t, b.Open(format, func([]float32) {}))
	require.NoError(t, b.Stop())
	assert.NoError(t, <-b.Done())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNew(t *testing.T) {
	_, err := wav.New("out.wav", time.Second, signal.BitDepth8)
	assert.ErrorIs(t, err, wav.ErrUnsupportedBitDepth)
	_, err = wav.New("out.wav", 0, signal.BitDepth16)
	assert.Error(t, err)

	b, err := wav.New(filepath.Join(t.TempDir(), "missing", "out.wav"), time.Second, signal.BitDepth16)
	require.NoError(t, err)
	assert.Error(t, b.Open(format, func([]float32) {}))
}
