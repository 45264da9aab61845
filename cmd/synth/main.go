package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	audio "pipelined.dev/synth/signal"
)

type config struct {
	args   []string
	stdout io.Writer
}

type command interface {
	Name() string
	Help() string
	Register(*flag.FlagSet)
	Run(ctx context.Context, stdout io.Writer) error
}

var (
	successExitCode = 0
	errorExitCode   = 1
)

func commands() []command {
	return []command{
		&playCommand{},
		&renderCommand{},
		&checkCommand{},
		&kindsCommand{},
	}
}

func (config *config) run(ctx context.Context) int {
	cmdName, args := parseArgs(config.args)
	if cmdName == "" {
		printUsage(config.stdout)
		return errorExitCode
	}

	for _, cmd := range commands() {
		if cmd.Name() != cmdName {
			continue
		}
		flags := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		flags.SetOutput(config.stdout)
		cmd.Register(flags)
		if err := flags.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return successExitCode
			}
			return errorExitCode
		}
		if v, ok := cmd.(interface{ Validate([]string) error }); ok {
			if err := v.Validate(flags.Args()); err != nil {
				fmt.Fprintf(config.stdout, "%v\n", err)
				flags.PrintDefaults()
				return errorExitCode
			}
		}
		if err := cmd.Run(ctx, config.stdout); err != nil {
			fmt.Fprintf(config.stdout, "Command failed: %v\n", err)
			return errorExitCode
		}
		return successExitCode
	}
	printUsage(config.stdout)
	return errorExitCode
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c := config{
		args:   os.Args,
		stdout: os.Stdout,
	}
	code := c.run(ctx)
	stop()
	os.Exit(code)
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Synth is a live-codable synthesizer")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: synth <command> [flags] <project>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands() {
		fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}

// stream holds flags of the stream format.
type stream struct {
	sampleRate uint
	channels   int
	blockSize  int
}

func (s *stream) register(fs *flag.FlagSet) {
	fs.UintVar(&s.sampleRate, "rate", 48000, "sample rate")
	fs.IntVar(&s.channels, "channels", 2, "number of output channels")
	fs.IntVar(&s.blockSize, "block", 256, "frames per block")
}

func (s *stream) format() audio.Format {
	return audio.Format{
		SampleRate: audio.SampleRate(s.sampleRate),
		Channels:   s.channels,
		BlockSize:  s.blockSize,
	}
}

// projectArg returns the single positional argument.
func projectArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("exactly one project file is required")
	}
	return args[0], nil
}
