package project_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/synth/graph"
	"pipelined.dev/synth/project"
)

var expected = graph.Description{
	Nodes: []graph.NodeSpec{
		{ID: "osc", Type: "sine", Params: map[string]float64{"frequency": 220, "amplitude": 0.5}},
		{ID: "kick", Type: "sampler", File: "kick.wav"},
		{ID: "out", Type: "mixer"},
	},
	Edges: []graph.Edge{
		{From: "osc", To: "out"},
		{From: "kick", To: "out"},
	},
	Output: "out",
}

const yamlProject = `
nodes:
  - id: osc
    type: sine
    params:
      frequency: 220
      amplitude: 0.5
  - id: kick
    type: sampler
    file: kick.wav
  - id: out
    type: mixer
edges:
  - {from: osc, to: out}
  - {from: kick, to: out}
output: out
`

const jsonProject = `{
  "nodes": [
    {"id": "osc", "type": "sine", "params": {"frequency": 220, "amplitude": 0.5}},
    {"id": "kick", "type": "sampler", "file": "kick.wav"},
    {"id": "out", "type": "mixer"}
  ],
  "edges": [
    {"from": "osc", "to": "out"},
    {"from": "kick", "to": "out"}
  ],
  "output": "out"
}`

const luaProject = `
local f = 110 * 2
node("osc", "sine", {frequency = f, amplitude = 0.5})
node("kick", "sampler", nil, "kick.wav")
output(node("out", "mixer"))
connect("osc", "out")
connect("kick", "out")
`

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "project.yaml", content: yamlProject},
		{name: "project.yml", content: yamlProject},
		{name: "project.json", content: jsonProject},
		{name: "project.lua", content: luaProject},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := write(t, test.name, test.content)
			d, err := project.Load(context.Background(), path)
			require.NoError(t, err)

			// asset paths are resolved against the project directory
			assert.Equal(t, filepath.Join(filepath.Dir(path), "kick.wav"), d.Nodes[1].File)
			d.Nodes[1].File = "kick.wav"
			assert.Equal(t, expected, d)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
	}{
		{
			name: "project.txt",
			err:  project.ErrUnsupportedFormat,
		},
		{
			name:    "malformed.yaml",
			content: "nodes: [",
			err:     project.ErrInvalidProject,
		},
		{
			name:    "unknown-field.yaml",
			content: "nodes: []\nouput: out\n",
			err:     project.ErrInvalidProject,
		},
		{
			name:    "syntax.lua",
			content: "node(",
			err:     project.ErrInvalidProject,
		},
		{
			name:    "param-type.lua",
			content: `node("osc", "sine", {frequency = "high"})`,
			err:     project.ErrInvalidProject,
		},
		{
			name:    "connect.lua",
			content: `connect("osc")`,
			err:     project.ErrInvalidProject,
		},
		{
			name:    "sandbox.lua",
			content: `dofile("/etc/passwd")`,
			err:     project.ErrInvalidProject,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := write(t, test.name, test.content)
			_, err := project.Load(context.Background(), path)
			assert.ErrorIs(t, err, test.err)
		})
	}

	_, err := project.Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestScriptCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := project.Decode(ctx, project.Lua, "loop.lua", []byte("while true do end"))
	assert.ErrorIs(t, err, project.ErrInvalidProject)
}

func TestConnectChain(t *testing.T) {
	d, err := project.Decode(context.Background(), project.Lua, "chain.lua", []byte(`connect("a", "b", "c")`))
	require.NoError(t, err)
	assert.Equal(t, []graph.Edge{{From: "a", To: "b"}, {From: "b", To: "c"}}, d.Edges)
}

func TestEncode(t *testing.T) {
	data, err := project.Encode(expected)
	require.NoError(t, err)
	d, err := project.Decode(context.Background(), project.YAML, "encoded", data)
	require.NoError(t, err)
	assert.Equal(t, expected, d)
}
