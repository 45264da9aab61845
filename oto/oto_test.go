//go:build oto

package oto_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/synth"
	"pipelined.dev/synth/graph"
	"pipelined.dev/synth/oto"
	"pipelined.dev/synth/signal"
)

func TestPlay(t *testing.T) {
	e, err := synth.New(signal.Format{SampleRate: 48000, Channels: 2, BlockSize: 256}, oto.New())
	require.NoError(t, err)
	_, err = e.Load(graph.Description{
		Nodes:  []graph.NodeSpec{{ID: "osc", Type: "triangle", Params: map[string]float64{"amplitude": 0.2}}},
		Output: "osc",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	assert.NoError(t, e.Run(ctx))
	assert.NotZero(t, e.Status().Callback.Blocks)
}
