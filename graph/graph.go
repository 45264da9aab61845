// Package graph builds generator graphs from descriptions and renders them.
//
// An Instance is immutable after Build returns: its nodes, render order and
// buffers never change. Only generator state and parameter values change
// while it's live.
package graph

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/rs/xid"

	"pipelined.dev/synth/generator"
	"pipelined.dev/synth/param"
	"pipelined.dev/synth/signal"
)

// State is the lifecycle state of an instance.
type State int32

// Instance lifecycle.
const (
	Building State = iota
	Live
	Retiring
	Destroyed
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Live:
		return "live"
	case Retiring:
		return "retiring"
	case Destroyed:
		return "destroyed"
	}
	return "unknown"
}

type (
	// Instance is a built graph ready to render.
	Instance struct {
		id     string
		format signal.Format
		nodes  []node
		// order is the render order, computed once in Build.
		order  []*node
		output *node
		state  atomic.Int32
		// blocks counts Render calls, used to verify retired instances
		// were never rendered.
		blocks atomic.Uint64
	}

	node struct {
		id     string
		typ    string
		kind   generator.Kind
		gen    generator.Generator
		params *param.Set
		inputs []*signal.Buffer
		out    *signal.Buffer
	}

	// NodeParams is a snapshot of node parameter values.
	NodeParams struct {
		Node   string
		Type   string
		Kind   generator.Kind
		Params []param.Snapshot
	}
)

// Build validates the description and creates a new instance. The returned
// instance is in Building state, so only the caller can use it until it's
// submitted. Build allocates everything the instance will need to render.
func Build(d Description, f signal.Format, r *generator.Registry) (*Instance, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}
	t, err := d.validate(r)
	if err != nil {
		return nil, err
	}

	inst := Instance{
		id:     newUID(),
		format: f,
		nodes:  make([]node, len(d.Nodes)),
	}
	var ps problems
	for i, spec := range d.Nodes {
		def, _ := r.Lookup(spec.Type)
		params := param.NewSet(def.Params...)
		for name, v := range spec.Params {
			params.Must(name).Store(v)
		}
		gen, err := newGenerator(def, generator.Config{
			Format: f,
			Params: params,
			File:   spec.File,
		})
		if err != nil {
			ps.add(spec.ID, fmt.Errorf("%w: %v", ErrGeneratorFailed, err))
			continue
		}
		inst.nodes[i] = node{
			id:     spec.ID,
			typ:    spec.Type,
			kind:   def.Kind,
			gen:    gen,
			params: params,
			out:    signal.NewBuffer(f),
		}
	}
	if err := ps.ret(); err != nil {
		// release what was built so far
		inst.Destroy()
		return nil, err
	}

	for i := range inst.nodes {
		inputs := make([]*signal.Buffer, 0, len(t.inputs[i]))
		for _, from := range t.inputs[i] {
			inputs = append(inputs, inst.nodes[from].out)
		}
		inst.nodes[i].inputs = inputs
	}
	inst.order = make([]*node, 0, len(t.order))
	for _, i := range t.order {
		inst.order = append(inst.order, &inst.nodes[i])
	}
	inst.output = &inst.nodes[t.output]
	return &inst, nil
}

// newGenerator recovers constructor panics, the description is external
// input.
func newGenerator(def generator.Definition, c generator.Config) (g generator.Generator, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", def.Name, r)
		}
	}()
	return def.New(c)
}

// ID returns unique id of the instance.
func (inst *Instance) ID() string {
	return inst.id
}

// Format returns the stream format the instance was built for.
func (inst *Instance) Format() signal.Format {
	return inst.format
}

// State returns current lifecycle state.
func (inst *Instance) State() State {
	return State(inst.state.Load())
}

// SetState moves instance to a new lifecycle state. It's used by the
// swap coordinator only.
func (inst *Instance) SetState(s State) {
	inst.state.Store(int32(s))
}

// Blocks returns the number of Render calls on the instance.
func (inst *Instance) Blocks() uint64 {
	return inst.blocks.Load()
}

// Render renders frames starting at sample tick start into dst. Nodes are
// rendered in topological order. Expired is called between nodes; if it
// returns true, rendering stops and Render returns false. In that case dst
// content is undefined and the caller must discard it.
//
// Render is called from the audio callback.
func (inst *Instance) Render(start uint64, frames int, dst *signal.Buffer, expired func() bool) bool {
	inst.blocks.Add(1)
	frames = min(frames, inst.format.BlockSize)
	b := generator.Block{Start: start, Frames: frames}
	for _, n := range inst.order {
		n.gen.Render(b, n.inputs, n.out)
		if expired != nil && expired() {
			return false
		}
	}
	dst.CopyFrom(inst.output.out, frames)
	dst.SetWritten(frames)
	return true
}

// Param returns live parameter value of the node.
func (inst *Instance) Param(nodeID, name string) (*param.Value, bool) {
	for i := range inst.nodes {
		if inst.nodes[i].id == nodeID {
			return inst.nodes[i].params.Get(name)
		}
	}
	return nil, false
}

// HasNode returns true if the instance contains a node with provided id.
func (inst *Instance) HasNode(nodeID string) bool {
	for i := range inst.nodes {
		if inst.nodes[i].id == nodeID {
			return true
		}
	}
	return false
}

// Params returns a snapshot of all parameter values in render order.
func (inst *Instance) Params() []NodeParams {
	result := make([]NodeParams, 0, len(inst.order))
	for _, n := range inst.order {
		result = append(result, NodeParams{
			Node:   n.id,
			Type:   n.typ,
			Kind:   n.kind,
			Params: n.params.Snapshot(nil),
		})
	}
	return result
}

// Destroy closes generators and drops buffers. It must only be called when
// the instance is not referenced by the audio callback. It's safe to call
// Destroy more than once.
func (inst *Instance) Destroy() error {
	if State(inst.state.Swap(int32(Destroyed))) == Destroyed {
		return nil
	}
	var errs []error
	for i := range inst.nodes {
		n := &inst.nodes[i]
		if c, ok := n.gen.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("node %s: %w", n.id, err))
			}
		}
		n.gen = nil
		n.inputs = nil
		n.out = nil
	}
	inst.order = nil
	inst.output = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("destroy %s: %w", inst.id, err)
	}
	return nil
}

func newUID() string {
	return xid.New().String()
}
