// Package metric publishes engine counters with expvar. Counters are
// updated from control goroutines only, the audio callback keeps its own
// atomics which are periodically folded in here.
package metric

import (
	"expvar"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const componentsLabel = "synth"

const (
	// BlockCounter measures number of rendered blocks.
	BlockCounter = "Blocks"
	// UnderrunCounter measures number of blocks that missed the deadline.
	UnderrunCounter = "Underruns"
	// FaultCounter measures number of blocks aborted by generator panics.
	FaultCounter = "Faults"
	// SilentCounter measures number of blocks emitted without a graph.
	SilentCounter = "Silent"
	// SwapCounter measures number of adopted graphs.
	SwapCounter = "Swaps"
	// SupersededCounter measures number of graphs replaced before adoption.
	SupersededCounter = "Superseded"
	// RetiredCounter measures number of destroyed graphs.
	RetiredCounter = "Retired"
	// ReloadCounter measures number of successful reloads.
	ReloadCounter = "Reloads"
	// ReloadFailureCounter measures number of rejected reloads.
	ReloadFailureCounter = "ReloadFailures"
	// LatencyCounter is the duration of the last graph build.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of rendered signal.
	DurationCounter = "Duration"
)

var (
	components = metrics{
		m: make(map[string]*Metric),
	}

	counters = []string{
		BlockCounter,
		UnderrunCounter,
		FaultCounter,
		SilentCounter,
		SwapCounter,
		SupersededCounter,
		RetiredCounter,
		ReloadCounter,
		ReloadFailureCounter,
	}
)

// Get metrics values for provided component.
func Get(component string) map[string]string {
	return getCounters(component)
}

// GetAll returns counters for all measured components.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

// Components returns sorted names of measured components.
func Components() []string {
	components.Lock()
	defer components.Unlock()
	names := make([]string, 0, len(components.m))
	for component := range components.m {
		names = append(names, component)
	}
	sort.Strings(names)
	return names
}

func getCounters(component string) map[string]string {
	m := make(map[string]string)
	for _, counter := range append(counters, LatencyCounter, DurationCounter) {
		v := expvar.Get(key(component, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// Metric holds counters of a single component. Expvar variables are
// published once per component name and reused.
type Metric struct {
	key      string
	ints     map[string]*expvar.Int
	latency  *duration
	duration *duration
}

// Meter returns the metric of the component, it's created on the first
// call.
func Meter(component string) *Metric {
	return components.get(component)
}

// Add adds delta to the counter. Unknown counters are ignored.
func (m *Metric) Add(counter string, delta int64) {
	if v, ok := m.ints[counter]; ok && delta != 0 {
		v.Add(delta)
	}
}

// Value returns the counter value.
func (m *Metric) Value(counter string) int64 {
	if v, ok := m.ints[counter]; ok {
		return v.Value()
	}
	return 0
}

// SetLatency sets the duration of the last graph build.
func (m *Metric) SetLatency(d time.Duration) {
	m.latency.set(d)
}

// AddDuration adds the duration of rendered signal.
func (m *Metric) AddDuration(d time.Duration) {
	m.duration.add(d)
}

type metrics struct {
	sync.Mutex
	m map[string]*Metric
}

func (m *metrics) get(component string) *Metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[component]; ok {
		// return existing metric if available
		return metric
	}
	// create new metric
	metric := newMetric(component)
	m.m[component] = metric
	return metric
}

func newMetric(component string) *Metric {
	m := Metric{
		key:      component,
		ints:     make(map[string]*expvar.Int, len(counters)),
		latency:  &duration{},
		duration: &duration{},
	}
	for _, counter := range counters {
		m.ints[counter] = expvar.NewInt(key(component, counter))
	}
	expvar.Publish(key(component, LatencyCounter), m.latency)
	expvar.Publish(key(component, DurationCounter), m.duration)
	return &m
}

func key(component, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, component, counter)
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)))
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
