package swap

import (
	"sync/atomic"

	"pipelined.dev/synth/graph"
)

// ring is a bounded single-producer single-consumer queue. The audio
// callback is the only producer, the consumer side is serialized by the
// coordinator.
type ring struct {
	slots []*graph.Instance
	// head is the next slot to read, tail is the next slot to write.
	head atomic.Uint64
	tail atomic.Uint64
}

func newRing(size int) *ring {
	return &ring{slots: make([]*graph.Instance, size)}
}

// full is called by the producer.
func (r *ring) full() bool {
	return r.tail.Load()-r.head.Load() == uint64(len(r.slots))
}

// push returns false if the ring is full.
func (r *ring) push(inst *graph.Instance) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() == uint64(len(r.slots)) {
		return false
	}
	r.slots[tail%uint64(len(r.slots))] = inst
	r.tail.Store(tail + 1)
	return true
}

// pop returns nil if the ring is empty.
func (r *ring) pop() *graph.Instance {
	head := r.head.Load()
	if head == r.tail.Load() {
		return nil
	}
	i := head % uint64(len(r.slots))
	inst := r.slots[i]
	r.slots[i] = nil
	r.head.Store(head + 1)
	return inst
}

func (r *ring) len() int {
	return int(r.tail.Load() - r.head.Load())
}
