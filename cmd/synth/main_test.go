package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sineProject = `
nodes:
  - id: osc
    type: sine
    params: {frequency: 440}
  - id: out
    type: gain
edges:
  - {from: osc, to: out}
output: out
`

const cycleProject = `
nodes: [{id: a, type: gain}, {id: b, type: gain}]
edges: [{from: a, to: b}, {from: b, to: a}]
output: b
`

func TestInit(t *testing.T) {
	// check if commands are registered
	names := make(map[string]bool)
	for _, cmd := range commands() {
		assert.False(t, names[cmd.Name()], cmd.Name())
		names[cmd.Name()] = true
		assert.NotEmpty(t, cmd.Help())
	}
	assert.Len(t, names, 4)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	sine := filepath.Join(dir, "sine.yaml")
	require.NoError(t, os.WriteFile(sine, []byte(sineProject), 0o644))
	cycle := filepath.Join(dir, "cycle.yaml")
	require.NoError(t, os.WriteFile(cycle, []byte(cycleProject), 0o644))
	out := filepath.Join(dir, "out.wav")

	tests := []struct {
		args     []string
		code     int
		contains string
	}{
		{args: []string{"synth"}, code: errorExitCode, contains: "Usage"},
		{args: []string{"synth", "unknown"}, code: errorExitCode, contains: "Commands"},
		{args: []string{"synth", "kinds"}, code: successExitCode, contains: "frequency=440"},
		{args: []string{"synth", "check", sine}, code: successExitCode, contains: "osc -> out"},
		{args: []string{"synth", "check", "-dump", sine}, code: successExitCode, contains: "Output"},
		{args: []string{"synth", "check", cycle}, code: errorExitCode, contains: "cycle"},
		{args: []string{"synth", "check"}, code: errorExitCode, contains: "project file is required"},
		{args: []string{"synth", "check", "-block", "x", sine}, code: errorExitCode},
		{args: []string{"synth", "render", "-out", out, "-duration", "100ms", sine}, code: successExitCode, contains: "Rendered 100ms"},
		{args: []string{"synth", "render", "-bits", "8", sine}, code: errorExitCode, contains: "bit depth"},
		{args: []string{"synth", "play", "-backend", "bogus", sine}, code: errorExitCode, contains: "unknown backend"},
		{args: []string{"synth", "play", "-backend", "headless", "-watch=false", cycle}, code: errorExitCode, contains: "cycle"},
		{args: []string{"synth", "play", "-backend", "headless", sine}, code: successExitCode, contains: "Played"},
	}
	for _, test := range tests {
		t.Run(test.args[len(test.args)-1], func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			var stdout bytes.Buffer
			c := config{args: test.args, stdout: &stdout}
			assert.Equal(t, test.code, c.run(ctx))
			assert.Contains(t, stdout.String(), test.contains)
		})
	}
	_, err := os.Stat(out)
	assert.NoError(t, err)
}
