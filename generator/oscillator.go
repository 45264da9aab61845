package generator

import (
	"math"

	"pipelined.dev/synth/param"
	"pipelined.dev/synth/signal"
)

type waveform int

const (
	sine waveform = iota
	square
	saw
	triangle
)

var (
	frequencyParam = param.Def{Name: "frequency", Default: 440, Min: 0, Max: 24000}
	amplitudeParam = param.Def{Name: "amplitude", Default: 1, Min: 0, Max: 4}
	dutyParam      = param.Def{Name: "duty", Default: 0.5, Min: 0.01, Max: 0.99}
)

// oscillator is a phase accumulator. The phase is kept in [0, 1).
type oscillator struct {
	waveform
	sampleRate float64
	frequency  *param.Value
	amplitude  *param.Value
	duty       *param.Value
	phase      float64
}

func oscillatorDefinition(name string, w waveform) Definition {
	params := []param.Def{frequencyParam, amplitudeParam}
	if w == square {
		params = append(params, dutyParam)
	}
	return Definition{
		Name:   name,
		Kind:   Oscillator,
		Params: params,
		New: func(c Config) (Generator, error) {
			o := oscillator{
				waveform:   w,
				sampleRate: float64(c.SampleRate),
				frequency:  c.Params.Must(frequencyParam.Name),
				amplitude:  c.Params.Must(amplitudeParam.Name),
			}
			if w == square {
				o.duty = c.Params.Must(dutyParam.Name)
			}
			return &o, nil
		},
	}
}

// Render writes the waveform into the first channel and spreads it.
func (o *oscillator) Render(b Block, _ []*signal.Buffer, out *signal.Buffer) {
	// frequencies above nyquist alias, hold them there
	freq := math.Min(o.frequency.Load(), o.sampleRate/2)
	amp := o.amplitude.Load()
	inc := freq / o.sampleRate
	phase := o.phase
	dst := out.Channel(0, b.Frames)
	switch o.waveform {
	case sine:
		for i := range dst {
			dst[i] = amp * math.Sin(2*math.Pi*phase)
			phase = advance(phase, inc)
		}
	case square:
		duty := o.duty.Load()
		for i := range dst {
			if phase < duty {
				dst[i] = amp
			} else {
				dst[i] = -amp
			}
			phase = advance(phase, inc)
		}
	case saw:
		for i := range dst {
			dst[i] = amp * (2*phase - 1)
			phase = advance(phase, inc)
		}
	case triangle:
		for i := range dst {
			dst[i] = amp * (1 - 4*math.Abs(phase-0.5))
			phase = advance(phase, inc)
		}
	}
	o.phase = phase
	spread(b.Frames, out)
}

func advance(phase, inc float64) float64 {
	phase += inc
	if phase >= 1 {
		phase--
	}
	return phase
}
