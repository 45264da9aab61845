// Package reload builds new graph instances off the real-time path and
// submits them for adoption.
//
// A failed reload never touches the live graph: the attempt is logged,
// counted and discarded. Reloads can run concurrently, the most recent one
// wins and older builds that finish later are discarded without being
// submitted.
package reload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pipelined.dev/synth/generator"
	"pipelined.dev/synth/graph"
	"pipelined.dev/synth/log"
	"pipelined.dev/synth/metric"
	"pipelined.dev/synth/project"
	"pipelined.dev/synth/signal"
	"pipelined.dev/synth/swap"
)

// ErrSuperseded is returned when a newer reload was submitted while the
// build was in flight.
var ErrSuperseded = errors.New("reload superseded")

type (
	// Pipeline builds and submits graph instances.
	Pipeline struct {
		format   signal.Format
		registry *generator.Registry
		swap     *swap.Coordinator
		log      log.Logger
		metric   *metric.Metric

		// seq is the sequence number of the latest started reload.
		seq atomic.Uint64
		// mu guards submission and status.
		mu        sync.Mutex
		submitted uint64
		status    Status
	}

	// Status describes the reload history.
	Status struct {
		Reloads  int
		Failures int
		// LastID is the id of the last submitted instance.
		LastID string
		// LastError is the error of the last reload, nil if it succeeded.
		LastError error
		// BuildTime is the duration of the last successful build.
		BuildTime time.Duration
		At        time.Time
	}

	// Option configures pipeline.
	Option func(*Pipeline)
)

// WithLogger sets logger to the pipeline. Silent logger is used by
// default.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// WithMetric adds metrics for reloads.
func WithMetric(m *metric.Metric) Option {
	return func(p *Pipeline) {
		p.metric = m
	}
}

// WithRegistry sets generator registry. Built-in generators are used by
// default.
func WithRegistry(r *generator.Registry) Option {
	return func(p *Pipeline) {
		p.registry = r
	}
}

// New returns a pipeline that submits instances built for the stream
// format to the coordinator.
func New(f signal.Format, c *swap.Coordinator, options ...Option) *Pipeline {
	p := Pipeline{
		format: f,
		swap:   c,
		log:    log.Silent(),
	}
	for _, option := range options {
		option(&p)
	}
	if p.registry == nil {
		p.registry = generator.Builtin()
	}
	return &p
}

// Registry returns generator registry of the pipeline.
func (p *Pipeline) Registry() *generator.Registry {
	return p.registry
}

// Reload builds a new instance from the description and submits it. It
// returns the id of submitted instance.
func (p *Pipeline) Reload(d graph.Description) (string, error) {
	seq := p.seq.Add(1)
	if n, err := p.swap.DrainRetired(); err != nil {
		p.log.Warn(fmt.Sprintf("destroy retired graphs: %v", err))
	} else if n > 0 {
		p.log.Debug(fmt.Sprintf("destroyed %d retired graphs", n))
	}

	start := time.Now()
	inst, err := graph.Build(d, p.format, p.registry)
	if err != nil {
		return "", p.fail(err)
	}
	buildTime := time.Since(start)

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq < p.submitted {
		inst.Destroy()
		p.log.Debug(fmt.Sprintf("graph %s superseded before submission", inst.ID()))
		return "", ErrSuperseded
	}
	if err := p.swap.Submit(inst); err != nil {
		inst.Destroy()
		return "", p.failLocked(err)
	}
	p.submitted = seq
	p.status.Reloads++
	p.status.LastID = inst.ID()
	p.status.LastError = nil
	p.status.BuildTime = buildTime
	p.status.At = time.Now()
	if p.metric != nil {
		p.metric.Add(metric.ReloadCounter, 1)
		p.metric.SetLatency(buildTime)
	}
	p.log.Info(fmt.Sprintf("graph %s submitted: %d nodes built in %v", inst.ID(), len(d.Nodes), buildTime))
	return inst.ID(), nil
}

// ReloadFile loads the project file and reloads it.
func (p *Pipeline) ReloadFile(ctx context.Context, path string) (string, error) {
	d, err := project.Load(ctx, path)
	if err != nil {
		return "", p.fail(err)
	}
	return p.Reload(d)
}

func (p *Pipeline) fail(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failLocked(err)
}

func (p *Pipeline) failLocked(err error) error {
	p.status.Failures++
	p.status.LastError = err
	p.status.At = time.Now()
	if p.metric != nil {
		p.metric.Add(metric.ReloadFailureCounter, 1)
	}
	p.log.Warn(fmt.Sprintf("reload rejected, live graph keeps playing: %v", err))
	return err
}

// Status returns reload history.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
