package generator

import (
	"math"

	"pipelined.dev/synth/param"
	"pipelined.dev/synth/signal"
)

var (
	cutoffParam   = param.Def{Name: "cutoff", Default: 1000, Min: 0, Max: 24000}
	timeParam     = param.Def{Name: "time", Default: 0.25, Min: 0, Max: maxDelay}
	feedbackParam = param.Def{Name: "feedback", Default: 0.3, Min: 0, Max: 0.95}
	mixParam      = param.Def{Name: "mix", Default: 0.5, Min: 0, Max: 1}
	panParam      = param.Def{Name: "pan", Default: 0, Min: -1, Max: 1}
)

// maxDelay is the longest delay time in seconds.
const maxDelay = 2

// mixer sums all inputs.
type mixer struct {
	gain *param.Value
}

func mixerDefinition() Definition {
	return Definition{
		Name:   "mixer",
		Kind:   Mixer,
		Params: []param.Def{gainParam},
		New: func(c Config) (Generator, error) {
			return &mixer{gain: c.Params.Must(gainParam.Name)}, nil
		},
	}
}

func (m *mixer) Render(b Block, in []*signal.Buffer, out *signal.Buffer) {
	sumInputs(b.Frames, in, out)
	scale(b.Frames, m.gain.Load(), out)
}

// gain scales the sum of inputs.
type gain struct {
	gain *param.Value
}

func gainDefinition() Definition {
	return Definition{
		Name:   "gain",
		Kind:   Effect,
		Params: []param.Def{gainParam},
		New: func(c Config) (Generator, error) {
			return &gain{gain: c.Params.Must(gainParam.Name)}, nil
		},
	}
}

func (g *gain) Render(b Block, in []*signal.Buffer, out *signal.Buffer) {
	sumInputs(b.Frames, in, out)
	scale(b.Frames, g.gain.Load(), out)
}

func scale(frames int, k float64, out *signal.Buffer) {
	if k == 1 {
		return
	}
	for c := 0; c < out.Channels(); c++ {
		dst := out.Channel(c, frames)
		for i := range dst {
			dst[i] *= k
		}
	}
}

// lowpass is a one-pole low-pass filter.
type lowpass struct {
	sampleRate float64
	cutoff     *param.Value
	history    []float64
}

func lowpassDefinition() Definition {
	return Definition{
		Name:   "lowpass",
		Kind:   Effect,
		Params: []param.Def{cutoffParam},
		New: func(c Config) (Generator, error) {
			return &lowpass{
				sampleRate: float64(c.SampleRate),
				cutoff:     c.Params.Must(cutoffParam.Name),
				history:    make([]float64, c.Channels),
			}, nil
		},
	}
}

func (f *lowpass) Render(b Block, in []*signal.Buffer, out *signal.Buffer) {
	sumInputs(b.Frames, in, out)
	cutoff := math.Min(f.cutoff.Load(), f.sampleRate/2)
	a := 1 - math.Exp(-2*math.Pi*cutoff/f.sampleRate)
	for c := 0; c < out.Channels(); c++ {
		y := f.history[c]
		dst := out.Channel(c, b.Frames)
		for i := range dst {
			y += a * (dst[i] - y)
			dst[i] = y
		}
		f.history[c] = y
	}
}

// delay is a feedback delay with a line preallocated for maxDelay.
type delay struct {
	sampleRate float64
	time       *param.Value
	feedback   *param.Value
	mix        *param.Value
	lines      [][]float64
	write      int
}

func delayDefinition() Definition {
	return Definition{
		Name:   "delay",
		Kind:   Effect,
		Params: []param.Def{timeParam, feedbackParam, mixParam},
		New: func(c Config) (Generator, error) {
			size := maxDelay*int(c.SampleRate) + 1
			lines := make([][]float64, c.Channels)
			for i := range lines {
				lines[i] = make([]float64, size)
			}
			return &delay{
				sampleRate: float64(c.SampleRate),
				time:       c.Params.Must(timeParam.Name),
				feedback:   c.Params.Must(feedbackParam.Name),
				mix:        c.Params.Must(mixParam.Name),
				lines:      lines,
			}, nil
		},
	}
}

func (d *delay) Render(b Block, in []*signal.Buffer, out *signal.Buffer) {
	sumInputs(b.Frames, in, out)
	feedback := d.feedback.Load()
	mix := d.mix.Load()
	size := len(d.lines[0])
	offset := int(d.time.Load() * d.sampleRate)
	offset = max(1, min(offset, size-1))

	var write int
	for c := 0; c < out.Channels(); c++ {
		line := d.lines[c]
		dst := out.Channel(c, b.Frames)
		write = d.write
		for i := range dst {
			read := write - offset
			if read < 0 {
				read += size
			}
			delayed := line[read]
			line[write] = dst[i] + delayed*feedback
			dst[i] = dst[i]*(1-mix) + delayed*mix
			write++
			if write == size {
				write = 0
			}
		}
	}
	d.write = write
}

// pan is an equal-power stereo panner. Channels after the second are
// passed through.
type pan struct {
	pan *param.Value
}

func panDefinition() Definition {
	return Definition{
		Name:   "pan",
		Kind:   Effect,
		Params: []param.Def{panParam},
		New: func(c Config) (Generator, error) {
			return &pan{pan: c.Params.Must(panParam.Name)}, nil
		},
	}
}

func (p *pan) Render(b Block, in []*signal.Buffer, out *signal.Buffer) {
	sumInputs(b.Frames, in, out)
	if out.Channels() < 2 {
		return
	}
	angle := (p.pan.Load() + 1) * math.Pi / 4
	left, right := math.Cos(angle), math.Sin(angle)
	l := out.Channel(0, b.Frames)
	r := out.Channel(1, b.Frames)
	for i := range l {
		l[i] *= left
		r[i] *= right
	}
}
