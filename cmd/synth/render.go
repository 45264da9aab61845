package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"pipelined.dev/synth"
	"pipelined.dev/synth/log"
	audio "pipelined.dev/synth/signal"
	"pipelined.dev/synth/wav"
)

type renderCommand struct {
	stream
	out      string
	duration time.Duration
	bitDepth uint
	project  string
}

func (cmd *renderCommand) Name() string {
	return "render"
}

func (cmd *renderCommand) Help() string {
	return "Render the project into a wav file"
}

func (cmd *renderCommand) Register(fs *flag.FlagSet) {
	cmd.stream.register(fs)
	fs.StringVar(&cmd.out, "out", "out.wav", "output wav file")
	fs.DurationVar(&cmd.duration, "duration", 10*time.Second, "duration of rendered signal")
	fs.UintVar(&cmd.bitDepth, "bits", 16, "bit depth: 16, 24 or 32")
}

func (cmd *renderCommand) Validate(args []string) (err error) {
	cmd.project, err = projectArg(args)
	return
}

func (cmd *renderCommand) Run(ctx context.Context, stdout io.Writer) error {
	b, err := wav.New(cmd.out, cmd.duration, audio.BitDepth(cmd.bitDepth))
	if err != nil {
		return err
	}
	e, err := synth.New(cmd.format(), b, synth.WithLogger(log.GetLogger()))
	if err != nil {
		return err
	}
	if _, err := e.LoadFile(ctx, cmd.project); err != nil {
		return err
	}
	if err := e.Run(ctx); err != nil {
		return err
	}
	status := e.Status()
	fmt.Fprintf(stdout, "Rendered %v into %s, %d underruns\n", status.Rendered, cmd.out, status.Callback.Underruns)
	return nil
}
