package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"pipelined.dev/synth/generator"
	"pipelined.dev/synth/graph"
	"pipelined.dev/synth/project"
)

type checkCommand struct {
	stream
	dump    bool
	project string
}

func (cmd *checkCommand) Name() string {
	return "check"
}

func (cmd *checkCommand) Help() string {
	return "Validate the project without playing it"
}

func (cmd *checkCommand) Register(fs *flag.FlagSet) {
	cmd.stream.register(fs)
	fs.BoolVar(&cmd.dump, "dump", false, "print the loaded description")
}

func (cmd *checkCommand) Validate(args []string) (err error) {
	cmd.project, err = projectArg(args)
	return
}

func (cmd *checkCommand) Run(ctx context.Context, stdout io.Writer) error {
	d, err := project.Load(ctx, cmd.project)
	if err != nil {
		return err
	}
	if cmd.dump {
		spew.Fdump(stdout, d)
	}
	inst, err := graph.Build(d, cmd.format(), generator.Builtin())
	if err != nil {
		return err
	}
	defer inst.Destroy()

	order := make([]string, 0, len(d.Nodes))
	for _, n := range inst.Params() {
		order = append(order, n.Node)
	}
	fmt.Fprintf(stdout, "ok: %d nodes, %d edges, render order: %s\n", len(d.Nodes), len(d.Edges), strings.Join(order, " -> "))
	return nil
}
