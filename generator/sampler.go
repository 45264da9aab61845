package generator

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"

	"pipelined.dev/synth/param"
	"pipelined.dev/synth/signal"
)

var (
	gainParam = param.Def{Name: "gain", Default: 1, Min: 0, Max: 4}
	rateParam = param.Def{Name: "rate", Default: 1, Min: 0, Max: 4}
	loopParam = param.Def{Name: "loop", Default: 0, Min: 0, Max: 1}
)

// ErrInvalidWav is returned when sampler asset is not a valid wav file.
var ErrInvalidWav = errors.New("invalid wav file")

// sampler plays a wav asset that was decoded when the graph was built.
type sampler struct {
	data     [][]float64
	step     float64
	gain     *param.Value
	rate     *param.Value
	loop     *param.Value
	position float64
}

func samplerDefinition() Definition {
	return Definition{
		Name:   "sampler",
		Kind:   Sampler,
		Params: []param.Def{gainParam, rateParam, loopParam},
		New: func(c Config) (Generator, error) {
			if c.File == "" {
				return nil, ErrMissingFile
			}
			data, sampleRate, err := decodeWav(c.File)
			if err != nil {
				return nil, err
			}
			return &sampler{
				data: data,
				// resample by stepping through the asset
				step: float64(sampleRate) / float64(c.SampleRate),
				gain: c.Params.Must(gainParam.Name),
				rate: c.Params.Must(rateParam.Name),
				loop: c.Params.Must(loopParam.Name),
			}, nil
		},
	}
}

// decodeWav reads the whole file into planar float64 samples.
func decodeWav(path string) ([][]float64, signal.SampleRate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: %s", ErrInvalidWav, path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrInvalidWav, path, err)
	}
	channels := buf.Format.NumChannels
	if channels == 0 || len(buf.Data) < channels {
		return nil, 0, fmt.Errorf("%w: %s: no samples", ErrInvalidWav, path)
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(d.BitDepth)
	}
	divider := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	data := make([][]float64, channels)
	for c := range data {
		data[c] = make([]float64, frames)
		for i := range data[c] {
			data[c][i] = float64(buf.Data[i*channels+c]) / divider
		}
	}
	return data, signal.SampleRate(buf.Format.SampleRate), nil
}

func (s *sampler) Render(b Block, _ []*signal.Buffer, out *signal.Buffer) {
	gain := s.gain.Load()
	step := s.step * s.rate.Load()
	loop := s.loop.Load() >= 0.5
	length := float64(len(s.data[0]))
	last := len(s.data) - 1

	var position float64
	for c := 0; c < out.Channels(); c++ {
		src := s.data[min(c, last)]
		dst := out.Channel(c, b.Frames)
		position = s.position
		for i := range dst {
			if position >= length {
				if !loop {
					clear(dst[i:])
					break
				}
				position = math.Mod(position, length)
			}
			// linear interpolation between neighbour samples
			j := int(position)
			frac := position - float64(j)
			next := j + 1
			if next == len(src) {
				next = 0
				if !loop {
					next = j
				}
			}
			dst[i] = gain * (src[j] + (src[next]-src[j])*frac)
			position += step
		}
	}
	s.position = position
}

// Close drops decoded samples.
func (s *sampler) Close() error {
	s.data = nil
	return nil
}
