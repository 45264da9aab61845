package generator

import (
	"pipelined.dev/synth/param"
	"pipelined.dev/synth/signal"
)

var seedParam = param.Def{Name: "seed", Default: 1, Min: 0, Max: 1 << 32}

// noise is white noise computed from the sample tick, so the output is a
// pure function of time and seed.
type noise struct {
	amplitude *param.Value
	seed      *param.Value
}

func noiseDefinition() Definition {
	return Definition{
		Name:   "noise",
		Kind:   Noise,
		Params: []param.Def{amplitudeParam, seedParam},
		New: func(c Config) (Generator, error) {
			return &noise{
				amplitude: c.Params.Must(amplitudeParam.Name),
				seed:      c.Params.Must(seedParam.Name),
			}, nil
		},
	}
}

func (n *noise) Render(b Block, _ []*signal.Buffer, out *signal.Buffer) {
	amp := n.amplitude.Load()
	seed := uint64(n.seed.Load()) << 32
	dst := out.Channel(0, b.Frames)
	for i := range dst {
		h := splitmix64(seed ^ (b.Start + uint64(i)))
		// top 53 bits give a uniform float in [0, 1)
		dst[i] = amp * (float64(h>>11)/(1<<53)*2 - 1)
	}
	spread(b.Frames, out)
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
