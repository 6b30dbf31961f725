// Package timer provides the named-sample timer shared between the training
// loop and its hooks.
package timer

import (
	"sync"
	"time"
)

// Timer accumulates named duration samples (in seconds) between resets.
type Timer struct {
	mu      sync.Mutex
	samples map[string][]float64
	now     func() time.Time
}

// New creates an empty Timer.
func New() *Timer {
	return &Timer{
		samples: make(map[string][]float64),
		now:     time.Now,
	}
}

// Start begins a sample for name and returns the stop func that records the
// elapsed time. The pair gives scoped acquisition:
//
//	stop := timer.Start("time_per_step")
//	defer stop()
func (t *Timer) Start(name string) func() {
	started := t.now()
	return func() {
		t.Record(name, t.now().Sub(started).Seconds())
	}
}

// Record appends a raw sample to the named series.
func (t *Timer) Record(name string, seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples[name] = append(t.samples[name], seconds)
}

// AsDict returns a copy of all accumulated series.
func (t *Timer) AsDict() map[string][]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string][]float64, len(t.samples))
	for name, series := range t.samples {
		copied := make([]float64, len(series))
		copy(copied, series)
		out[name] = copied
	}
	return out
}

// Len returns the total number of unflushed samples across all series.
func (t *Timer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, series := range t.samples {
		n += len(series)
	}
	return n
}

// Reset drops all samples.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = make(map[string][]float64)
}
