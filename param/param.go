// Package param provides live-tweakable generator parameters.
//
// Each parameter is a single float64 stored as atomic bits. The control
// context is the only writer, the audio callback is the only reader. A
// generator loads its parameters once per block and holds the values
// constant for the whole block, so a tweak never lands in the middle of a
// block.
//
// Values are never rejected on write. Out-of-range values are clamped to
// the nearest valid value when they are read, NaN reads as the default.
package param

import (
	"fmt"
	"math"
	"sync/atomic"
)

type (
	// Def describes a parameter: its name, default value and valid range.
	Def struct {
		Name    string
		Default float64
		Min     float64
		Max     float64
	}

	// Value is a single parameter value. The zero value is not usable,
	// values are created by NewSet.
	Value struct {
		Def
		bits atomic.Uint64
	}

	// Set is a fixed collection of values. Layout of the set never changes
	// after creation, so it can be read concurrently without locking.
	Set struct {
		values []*Value
		byName map[string]*Value
	}

	// Snapshot is a point-in-time copy of a parameter value.
	Snapshot struct {
		Name  string
		Value float64
		Min   float64
		Max   float64
	}
)

// Clamp returns the nearest valid value for v.
func (d Def) Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return d.Default
	case v < d.Min:
		return d.Min
	case v > d.Max:
		return d.Max
	}
	return v
}

// InRange returns true if v doesn't need to be clamped.
func (d Def) InRange(v float64) bool {
	return !math.IsNaN(v) && v >= d.Min && v <= d.Max
}

// Store sets a new raw value. It's safe to call concurrently with Load.
func (v *Value) Store(x float64) {
	v.bits.Store(math.Float64bits(x))
}

// Raw returns the stored value without clamping.
func (v *Value) Raw() float64 {
	return math.Float64frombits(v.bits.Load())
}

// Load returns the clamped value.
func (v *Value) Load() float64 {
	return v.Def.Clamp(v.Raw())
}

// NewSet creates a set with every value set to its default. It panics if
// definitions contain duplicate names.
func NewSet(defs ...Def) *Set {
	s := Set{
		values: make([]*Value, 0, len(defs)),
		byName: make(map[string]*Value, len(defs)),
	}
	for _, d := range defs {
		if _, ok := s.byName[d.Name]; ok {
			panic(fmt.Sprintf("duplicate parameter %q", d.Name))
		}
		v := &Value{Def: d}
		v.Store(d.Default)
		s.values = append(s.values, v)
		s.byName[d.Name] = v
	}
	return &s
}

// Get returns the value by name.
func (s *Set) Get(name string) (*Value, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.byName[name]
	return v, ok
}

// Must returns the value by name and panics if it's not defined. It's
// meant for generator constructors that look up their own parameters.
func (s *Set) Must(name string) *Value {
	v, ok := s.Get(name)
	if !ok {
		panic(fmt.Sprintf("parameter %q is not defined", name))
	}
	return v
}

// Len returns number of values in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Snapshot appends clamped values to dst in definition order.
func (s *Set) Snapshot(dst []Snapshot) []Snapshot {
	if s == nil {
		return dst
	}
	for _, v := range s.values {
		dst = append(dst, Snapshot{
			Name:  v.Name,
			Value: v.Load(),
			Min:   v.Min,
			Max:   v.Max,
		})
	}
	return dst
}
