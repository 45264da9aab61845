package metric_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/synth/metric"
)

func TestMeter(t *testing.T) {
	// test cases
	var tests = []struct {
		component         string
		routines          int
		blocks            int
		expectedBlocks    string
		expectedUnderruns string
	}{
		{
			component:         "engine-a",
			routines:          2,
			blocks:            10,
			expectedBlocks:    "20",
			expectedUnderruns: "2",
		},
		{
			// same component accumulates
			component:         "engine-a",
			routines:          2,
			blocks:            10,
			expectedBlocks:    "40",
			expectedUnderruns: "4",
		},
		{
			component:         "engine-b",
			routines:          4,
			blocks:            5,
			expectedBlocks:    "20",
			expectedUnderruns: "4",
		},
	}
	// function to test meter.
	testFn := func(m *metric.Metric, wg *sync.WaitGroup, blocks int) {
		for i := 0; i < blocks; i++ {
			m.Add(metric.BlockCounter, 1)
			m.AddDuration(time.Millisecond)
		}
		m.Add(metric.UnderrunCounter, 1)
		m.Add("unknown", 1)
		wg.Done()
	}

	for _, c := range tests {
		wg := &sync.WaitGroup{}
		wg.Add(c.routines)
		for i := 0; i < c.routines; i++ {
			go testFn(metric.Meter(c.component), wg, c.blocks)
		}
		// check if no data race.
		wg.Wait()
		values := metric.Get(c.component)
		assert.Equal(t, c.expectedBlocks, values[metric.BlockCounter])
		assert.Equal(t, c.expectedUnderruns, values[metric.UnderrunCounter])
		assert.Equal(t, "0", values[metric.FaultCounter])
	}

	assert.Equal(t, `"20ms"`, metric.Get("engine-b")[metric.DurationCounter])
	assert.Equal(t, int64(40), metric.Meter("engine-a").Value(metric.BlockCounter))
	assert.Subset(t, metric.Components(), []string{"engine-a", "engine-b"})
	assert.Contains(t, metric.GetAll(), "engine-b")
}

func TestLatency(t *testing.T) {
	m := metric.Meter("latency")
	m.SetLatency(3 * time.Millisecond)
	m.SetLatency(2 * time.Millisecond)
	assert.Equal(t, `"2ms"`, metric.Get("latency")[metric.LatencyCounter])
	assert.Empty(t, metric.Get("missing"))
}
