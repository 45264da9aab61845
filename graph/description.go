package graph

import (
	"fmt"
	"math"
	"sort"

	"pipelined.dev/synth/generator"
)

type (
	// Description is the declarative form of a graph. It's produced by
	// project loaders or built in code.
	Description struct {
		Nodes  []NodeSpec `yaml:"nodes" json:"nodes"`
		Edges  []Edge     `yaml:"edges" json:"edges"`
		Output string     `yaml:"output" json:"output"`
	}

	// NodeSpec describes a single generator.
	NodeSpec struct {
		ID     string             `yaml:"id" json:"id"`
		Type   string             `yaml:"type" json:"type"`
		Params map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
		// File is an asset path for generators that need one.
		File string `yaml:"file,omitempty" json:"file,omitempty"`
	}

	// Edge connects producer to consumer.
	Edge struct {
		From string `yaml:"from" json:"from"`
		To   string `yaml:"to" json:"to"`
	}
)

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s", e.From, e.To)
}

// topology is the validated shape of a description.
type topology struct {
	// order is node indices in render order.
	order []int
	// inputs are producer indices per node, in edge declaration order.
	inputs [][]int
	output int
}

// validate checks the description against registry and returns its
// topology. All problems are collected before returning.
func (d Description) validate(r *generator.Registry) (topology, error) {
	var ps problems
	if len(d.Nodes) == 0 {
		ps.add("", ErrNoNodes)
		return topology{}, ps.ret()
	}

	index := make(map[string]int, len(d.Nodes))
	defs := make([]generator.Definition, len(d.Nodes))
	for i, n := range d.Nodes {
		if n.ID == "" {
			ps.addf("", ErrEmptyID, "node #%d", i)
			continue
		}
		if _, ok := index[n.ID]; ok {
			ps.add(n.ID, ErrDuplicateNode)
			continue
		}
		index[n.ID] = i
		def, ok := r.Lookup(n.Type)
		if !ok {
			ps.addf(n.ID, ErrUnknownType, "%q", n.Type)
			continue
		}
		defs[i] = def
		for _, name := range sortedKeys(n.Params) {
			v := n.Params[name]
			if _, ok := def.Param(name); !ok {
				ps.addf(n.ID, ErrInvalidParam, "%s has no parameter %q", n.Type, name)
				continue
			}
			// out of range values are clamped, but not numbers are malformed
			if math.IsNaN(v) || math.IsInf(v, 0) {
				ps.addf(n.ID, ErrInvalidParam, "%s=%v", name, v)
			}
		}
	}

	t := topology{
		inputs: make([][]int, len(d.Nodes)),
		output: -1,
	}
	seen := make(map[Edge]struct{}, len(d.Edges))
	for _, e := range d.Edges {
		from, okFrom := index[e.From]
		to, okTo := index[e.To]
		if !okFrom || !okTo {
			ps.addf("", ErrDanglingEdge, "%v", e)
			continue
		}
		if _, ok := seen[e]; ok {
			ps.addf("", ErrDuplicateEdge, "%v", e)
			continue
		}
		seen[e] = struct{}{}
		if from == to {
			ps.addf(e.From, ErrCycle, "%v", e)
			continue
		}
		if defs[to].New != nil && defs[to].Kind.IsSource() {
			ps.addf(e.To, ErrSourceInput, "%v", e)
			continue
		}
		t.inputs[to] = append(t.inputs[to], from)
	}

	if i, ok := index[d.Output]; ok {
		t.output = i
	} else {
		ps.addf("", ErrNoOutput, "%q", d.Output)
	}
	if len(ps) > 0 {
		return topology{}, ps.ret()
	}

	var err error
	if t.order, err = t.sort(d); err != nil {
		return topology{}, err
	}
	if err := t.reachable(d); err != nil {
		return topology{}, err
	}
	return t, nil
}

// sort computes the render order with Kahn's algorithm. Ties are broken
// by declaration order, so the same description always renders in the
// same order.
func (t topology) sort(d Description) ([]int, error) {
	n := len(d.Nodes)
	consumers := make([][]int, n)
	pending := make([]int, n)
	for to, from := range t.inputs {
		pending[to] = len(from)
		for _, f := range from {
			consumers[f] = append(consumers[f], to)
		}
	}
	order := make([]int, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			break
		}
		done[next] = true
		order = append(order, next)
		for _, c := range consumers[next] {
			pending[c]--
		}
	}
	if len(order) == n {
		return order, nil
	}
	var ps problems
	for i := range d.Nodes {
		if !done[i] {
			ps.add(d.Nodes[i].ID, ErrCycle)
		}
	}
	return nil, ps.ret()
}

// reachable rejects nodes whose signal never reaches the output.
func (t topology) reachable(d Description) error {
	live := make([]bool, len(d.Nodes))
	stack := []int{t.output}
	live[t.output] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, from := range t.inputs[i] {
			if !live[from] {
				live[from] = true
				stack = append(stack, from)
			}
		}
	}
	var ps problems
	for i, ok := range live {
		if !ok {
			ps.add(d.Nodes[i].ID, ErrUnreachable)
		}
	}
	return ps.ret()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
