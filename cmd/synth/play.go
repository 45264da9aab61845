package main

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"pipelined.dev/synth"
	"pipelined.dev/synth/headless"
	"pipelined.dev/synth/log"
	"pipelined.dev/synth/oto"
	"pipelined.dev/synth/portaudio"
	"pipelined.dev/synth/scheduler"
)

type playCommand struct {
	stream
	backend string
	watch   bool
	budget  float64
	metrics string
	project string
}

func (cmd *playCommand) Name() string {
	return "play"
}

func (cmd *playCommand) Help() string {
	return "Play the project and reload it on every save"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	cmd.stream.register(fs)
	fs.StringVar(&cmd.backend, "backend", "portaudio", "audio backend: portaudio, oto or headless")
	fs.BoolVar(&cmd.watch, "watch", true, "reload the project when it's saved")
	fs.Float64Var(&cmd.budget, "budget", scheduler.DefaultBudget, "share of block duration available to render it")
	fs.StringVar(&cmd.metrics, "metrics", "", "address to serve expvar metrics, e.g. localhost:6060")
}

func (cmd *playCommand) Validate(args []string) error {
	path, err := projectArg(args)
	if err != nil {
		return err
	}
	cmd.project = path
	switch cmd.backend {
	case "portaudio", "oto", "headless":
		return nil
	}
	return fmt.Errorf("unknown backend: %s", cmd.backend)
}

func (cmd *playCommand) newBackend(l log.Logger) synth.Backend {
	switch cmd.backend {
	case "oto":
		return oto.New(oto.WithLogger(l))
	case "headless":
		return headless.New()
	}
	return portaudio.New(portaudio.WithLogger(l))
}

func (cmd *playCommand) Run(ctx context.Context, stdout io.Writer) error {
	logger := log.GetLogger()
	e, err := synth.New(cmd.format(), cmd.newBackend(logger),
		synth.WithLogger(logger),
		synth.WithBudget(cmd.budget),
	)
	if err != nil {
		return err
	}
	// with watch enabled a broken project can be fixed while playing
	if _, err := e.LoadFile(ctx, cmd.project); err != nil && !cmd.watch {
		return err
	}

	if cmd.metrics != "" {
		srv := &http.Server{
			Addr:              cmd.metrics,
			Handler:           expvar.Handler(),
			ReadHeaderTimeout: time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn(fmt.Sprintf("metrics server: %v", err))
			}
		}()
		defer srv.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	if cmd.watch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.Watch(ctx, cmd.project); err != nil {
				logger.Warn(fmt.Sprintf("watch %s: %v", cmd.project, err))
			}
		}()
	}
	err = e.Run(ctx)
	cancel()
	wg.Wait()

	status := e.Status()
	fmt.Fprintf(stdout, "Played %v: %d blocks, %d underruns, %d reloads, %d rejected\n",
		status.Rendered.Round(time.Millisecond),
		status.Callback.Blocks,
		status.Callback.Underruns,
		status.Reload.Reloads,
		status.Reload.Failures,
	)
	return err
}
