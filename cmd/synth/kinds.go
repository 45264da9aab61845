package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"pipelined.dev/synth/generator"
)

type kindsCommand struct{}

func (cmd *kindsCommand) Name() string {
	return "kinds"
}

func (cmd *kindsCommand) Help() string {
	return "Show the list of available generators"
}

func (cmd *kindsCommand) Register(*flag.FlagSet) {}

func (cmd *kindsCommand) Run(_ context.Context, stdout io.Writer) error {
	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tKIND\tPARAMS")
	for _, def := range generator.Builtin().Definitions() {
		params := make([]string, 0, len(def.Params))
		for _, p := range def.Params {
			params = append(params, fmt.Sprintf("%s=%v [%v, %v]", p.Name, p.Default, p.Min, p.Max))
		}
		fmt.Fprintf(w, "%s\t%v\t%s\n", def.Name, def.Kind, strings.Join(params, " "))
	}
	return w.Flush()
}
