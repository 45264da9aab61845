// Package generator defines the units of sound production and the closed
// set of built-in generator kinds.
//
// A generator renders a block of frames into its own buffer. Render is
// called from the audio callback: it must finish in time proportional to
// the number of frames, must not allocate, block or lock. Everything a
// generator needs is allocated by its constructor, which runs off the
// real-time path while a graph is built.
//
// Dispatch happens once per block through the Generator interface. Inner
// per-sample loops are specialized per waveform/effect and never dispatch.
package generator

import (
	"errors"
	"fmt"
	"sort"

	"pipelined.dev/synth/param"
	"pipelined.dev/synth/signal"
)

// Kind is the variant of a generator.
type Kind int

// Generator kinds.
const (
	Oscillator Kind = iota
	Noise
	Sampler
	Mixer
	Effect
)

func (k Kind) String() string {
	switch k {
	case Oscillator:
		return "oscillator"
	case Noise:
		return "noise"
	case Sampler:
		return "sampler"
	case Mixer:
		return "mixer"
	case Effect:
		return "effect"
	}
	return "unknown"
}

// IsSource returns true for kinds that produce signal without inputs.
func (k Kind) IsSource() bool {
	return k == Oscillator || k == Noise || k == Sampler
}

type (
	// Block identifies the frames to render. Start is expressed in sample
	// ticks since the stream was opened.
	Block struct {
		Start  uint64
		Frames int
	}

	// Generator renders frames. Inputs are the buffers of the producers
	// feeding this generator; sources get no inputs.
	Generator interface {
		Render(b Block, in []*signal.Buffer, out *signal.Buffer)
	}

	// Config is passed to generator constructors.
	Config struct {
		signal.Format
		// Params are created from the definition and already hold
		// the values of the description.
		Params *param.Set
		// File is an asset path, used by samplers.
		File string
	}

	// Definition describes a generator type that can be referenced by
	// graph descriptions.
	Definition struct {
		Name   string
		Kind   Kind
		Params []param.Def
		New    func(Config) (Generator, error)
	}

	// Registry maps type names to definitions.
	Registry struct {
		defs map[string]Definition
	}
)

var (
	// ErrDuplicateType is returned when a type name is registered twice.
	ErrDuplicateType = errors.New("duplicate generator type")
	// ErrMissingFile is returned when a sampler has no file.
	ErrMissingFile = errors.New("missing file")
)

// NewRegistry returns a registry with provided definitions.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

// Builtin returns a new registry with all built-in generator types.
func Builtin() *Registry {
	r, err := NewRegistry(builtins()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds definition to the registry.
func (r *Registry) Register(d Definition) error {
	if d.Name == "" || d.New == nil {
		return fmt.Errorf("invalid definition %q", d.Name)
	}
	if _, ok := r.defs[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, d.Name)
	}
	r.defs[d.Name] = d
	return nil
}

// Lookup returns definition by type name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Definitions returns all definitions sorted by name.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}

// Param returns the parameter definition by name.
func (d Definition) Param(name string) (param.Def, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return param.Def{}, false
}

func builtins() []Definition {
	return []Definition{
		oscillatorDefinition("sine", sine),
		oscillatorDefinition("square", square),
		oscillatorDefinition("saw", saw),
		oscillatorDefinition("triangle", triangle),
		noiseDefinition(),
		samplerDefinition(),
		mixerDefinition(),
		gainDefinition(),
		lowpassDefinition(),
		delayDefinition(),
		panDefinition(),
	}
}

// sumInputs writes the sum of inputs into out. Out is silent if there
// are no inputs.
func sumInputs(frames int, in []*signal.Buffer, out *signal.Buffer) {
	if len(in) == 0 {
		out.Zero(0, frames)
		return
	}
	out.CopyFrom(in[0], frames)
	for _, b := range in[1:] {
		last := b.Channels() - 1
		for c := 0; c < out.Channels(); c++ {
			dst := out.Channel(c, frames)
			src := b.Channel(min(c, last), frames)
			for i := range dst {
				dst[i] += src[i]
			}
		}
	}
}

// spread copies the first channel to all others.
func spread(frames int, out *signal.Buffer) {
	first := out.Channel(0, frames)
	for c := 1; c < out.Channels(); c++ {
		copy(out.Channel(c, frames), first)
	}
}
