package project

import (
	"context"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"pipelined.dev/synth/graph"
)

// script collects the description while a Lua script runs.
type script struct {
	d graph.Description
}

// runScript executes the script in a sandbox with base, table, string and
// math libraries only.
func runScript(ctx context.Context, name, source string) (graph.Description, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			return graph.Description{}, err
		}
	}
	// no file access from project scripts
	for _, global := range []string{"dofile", "loadfile", "require"} {
		L.SetGlobal(global, lua.LNil)
	}

	var s script
	L.SetGlobal("node", L.NewFunction(s.node))
	L.SetGlobal("connect", L.NewFunction(s.connect))
	L.SetGlobal("output", L.NewFunction(s.output))
	L.SetContext(ctx)

	fn, err := L.Load(strings.NewReader(source), name)
	if err != nil {
		return graph.Description{}, err
	}
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return graph.Description{}, err
	}
	return s.d, nil
}

// node(id, type [, params [, file]]) adds a node and returns its id.
func (s *script) node(L *lua.LState) int {
	spec := graph.NodeSpec{
		ID:   L.CheckString(1),
		Type: L.CheckString(2),
	}
	if params := L.OptTable(3, nil); params != nil {
		spec.Params = make(map[string]float64)
		params.ForEach(func(k, v lua.LValue) {
			name, ok := k.(lua.LString)
			if !ok {
				L.ArgError(3, "parameter names must be strings")
			}
			value, ok := v.(lua.LNumber)
			if !ok {
				L.ArgError(3, "parameter "+string(name)+" must be a number")
			}
			spec.Params[string(name)] = float64(value)
		})
	}
	spec.File = L.OptString(4, "")
	s.d.Nodes = append(s.d.Nodes, spec)
	L.Push(lua.LString(spec.ID))
	return 1
}

// connect(a, b, ...) adds edges a -> b -> ...
func (s *script) connect(L *lua.LState) int {
	n := L.GetTop()
	if n < 2 {
		L.RaiseError("connect needs at least two nodes")
	}
	from := L.CheckString(1)
	for i := 2; i <= n; i++ {
		to := L.CheckString(i)
		s.d.Edges = append(s.d.Edges, graph.Edge{From: from, To: to})
		from = to
	}
	return 0
}

// output(id) designates the output node.
func (s *script) output(L *lua.LState) int {
	s.d.Output = L.CheckString(1)
	return 0
}
