// Package swap implements the hot-swap coordinator: the single point of
// truth for which graph instance is live.
//
// There are two sides. The audio callback calls AdoptIfPending and
// RetireLive; they only use atomic operations and never block. Everything
// else is called from control goroutines. Instances are destroyed by
// DrainRetired only after the audio callback handed them over through the
// retirement ring, so an instance is never destroyed while it's rendered.
package swap

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"pipelined.dev/synth/graph"
)

// DefaultRetireCapacity is the default size of the retirement ring.
const DefaultRetireCapacity = 16

// ErrClosed is returned when an instance is submitted after shutdown.
var ErrClosed = errors.New("coordinator is closed")

type (
	// Coordinator owns the swap slot and the retirement queue.
	Coordinator struct {
		// pending is the swap slot.
		pending atomic.Pointer[graph.Instance]
		// live is written by the audio callback only.
		live    atomic.Pointer[graph.Instance]
		retired *ring
		closed  atomic.Bool

		// mu serializes the consumer side of the retirement ring and
		// protects discarded.
		mu        sync.Mutex
		discarded []*graph.Instance

		submitted  atomic.Uint64
		adopted    atomic.Uint64
		superseded atomic.Uint64
		deferred   atomic.Uint64
		destroyed  atomic.Uint64
	}

	// Stats is a snapshot of coordinator counters.
	Stats struct {
		Submitted uint64
		Adopted   uint64
		// Superseded instances were replaced before adoption and never
		// rendered.
		Superseded uint64
		// Deferred counts adoptions postponed because the retirement
		// ring was full.
		Deferred  uint64
		Destroyed uint64
		// Queued is the number of instances waiting in the retirement
		// ring.
		Queued int
	}
)

// New returns a coordinator with retirement ring of provided capacity.
// Non-positive capacity means DefaultRetireCapacity.
func New(capacity int) *Coordinator {
	if capacity <= 0 {
		capacity = DefaultRetireCapacity
	}
	return &Coordinator{retired: newRing(capacity)}
}

// Submit places inst into the swap slot. An instance that was waiting and
// never adopted is moved to the retirement queue unrendered. Only the most
// recent submission is ever adopted.
func (c *Coordinator) Submit(inst *graph.Instance) error {
	if inst == nil {
		return fmt.Errorf("submit nil instance")
	}
	if c.closed.Load() {
		return ErrClosed
	}
	c.submitted.Add(1)
	if prev := c.pending.Swap(inst); prev != nil {
		c.superseded.Add(1)
		c.discard(prev)
	}
	// shutdown may have happened between the check and the swap
	if c.closed.Load() {
		if c.pending.CompareAndSwap(inst, nil) {
			inst.Destroy()
		}
		return ErrClosed
	}
	return nil
}

func (c *Coordinator) discard(inst *graph.Instance) {
	inst.SetState(graph.Retiring)
	c.mu.Lock()
	c.discarded = append(c.discarded, inst)
	c.mu.Unlock()
}

// AdoptIfPending promotes the pending instance to live and hands the old
// live instance to the retirement ring. It returns the instance to render
// and true if an adoption happened. If the ring is full, adoption is
// deferred and the current live instance keeps rendering.
//
// It must be called only from the audio callback.
func (c *Coordinator) AdoptIfPending() (*graph.Instance, bool) {
	old := c.live.Load()
	if c.pending.Load() == nil {
		return old, false
	}
	if old != nil && c.retired.full() {
		c.deferred.Add(1)
		return old, false
	}
	next := c.pending.Swap(nil)
	if next == nil {
		return old, false
	}
	next.SetState(graph.Live)
	c.live.Store(next)
	if old != nil {
		old.SetState(graph.Retiring)
		c.retired.push(old)
	}
	c.adopted.Add(1)
	return next, true
}

// RetireLive hands the live instance to the retirement ring. It returns
// false if the ring is full and the instance is still live.
//
// It must be called only from the audio callback.
func (c *Coordinator) RetireLive() bool {
	old := c.live.Load()
	if old == nil {
		return true
	}
	if !c.retired.push(old) {
		return false
	}
	old.SetState(graph.Retiring)
	c.live.Store(nil)
	return true
}

// DrainRetired destroys every retired instance. It returns the number of
// destroyed instances and joined destroy errors.
func (c *Coordinator) DrainRetired() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	n := 0
	destroy := func(inst *graph.Instance) {
		if err := inst.Destroy(); err != nil {
			errs = append(errs, err)
		}
		n++
	}
	for _, inst := range c.discarded {
		destroy(inst)
	}
	clear(c.discarded)
	c.discarded = c.discarded[:0]
	for inst := c.retired.pop(); inst != nil; inst = c.retired.pop() {
		destroy(inst)
	}
	c.destroyed.Add(uint64(n))
	return n, errors.Join(errs...)
}

// View calls fn with the live instance, which can be nil. The instance
// is not destroyed until fn returns.
func (c *Coordinator) View(fn func(live *graph.Instance)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.live.Load())
}

// Live returns the live instance. The instance may be retired and
// destroyed at any time after the call, use View to access its content.
func (c *Coordinator) Live() *graph.Instance {
	return c.live.Load()
}

// Pending returns true if an instance waits for adoption.
func (c *Coordinator) Pending() bool {
	return c.pending.Load() != nil
}

// Shutdown retires live and pending instances and destroys them. It must
// be called after the audio callback has stopped.
func (c *Coordinator) Shutdown() error {
	c.closed.Store(true)
	if inst := c.pending.Swap(nil); inst != nil {
		c.discard(inst)
	}
	if inst := c.live.Swap(nil); inst != nil {
		c.discard(inst)
	}
	_, err := c.DrainRetired()
	return err
}

// Stats returns a snapshot of the counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Submitted:  c.submitted.Load(),
		Adopted:    c.adopted.Load(),
		Superseded: c.superseded.Load(),
		Deferred:   c.deferred.Load(),
		Destroyed:  c.destroyed.Load(),
		Queued:     c.retired.len(),
	}
}
