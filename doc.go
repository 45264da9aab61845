/*
Package synth is a live-codable real-time synthesizer core.

Concept

The engine keeps an audio device fed while the sound-generation graph is
rebuilt and hot-swapped underneath it. There are two execution contexts:

    audio callback - renders one block of the live graph per device request;
    control context - builds new graphs, tweaks parameters and cleans up.

The audio callback never blocks, allocates or takes a lock. Everything it
shares with the control context is an atomic: the swap slot, the
retirement ring, parameter values and counters.

Graphs

A graph is described by nodes, edges and the output node:

    d := graph.Description{
        Nodes: []graph.NodeSpec{
            {ID: "osc", Type: "sine", Params: map[string]float64{"frequency": 440}},
            {ID: "out", Type: "gain"},
        },
        Edges:  []graph.Edge{{From: "osc", To: "out"}},
        Output: "out",
    }

Descriptions are usually loaded from YAML or Lua project files, see the
project package. Each load builds a fresh graph instance off the real-time
path. A description that fails validation is rejected as a whole and the
live graph keeps playing.

Running

Engine binds the graph pipeline to an audio backend:

    e, err := synth.New(format, headless.New())
    if err != nil {
        return err
    }
    if _, err := e.Load(d); err != nil {
        return err
    }
    err = e.Run(ctx)

Run blocks until the context is done or the device fails. On cancel the
live graph is drained at a block boundary before the backend is stopped.
Device failure is terminal: Run returns an error that matches
ErrDeviceFailure and the engine cannot be started again.

Live coding

Watch reloads a project file every time it's saved. New instances are
adopted by the audio callback at the next block boundary, replaced
instances are destroyed later by the reaper goroutine. If several reloads
are submitted before the callback runs, only the most recent one is ever
rendered.

Parameters of the live graph can be changed with SetParam. Values are
never rejected, out-of-range values are clamped when the generator reads
them at the start of a block.
*/
package synth
