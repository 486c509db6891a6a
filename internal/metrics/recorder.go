package metrics

import (
	"sync"

	"github.com/san-kum/revkit/internal/motor"
)

// Reading is one metric's current value.
type Reading struct {
	Name  string
	Value float64
}

// Recorder feeds every sample to a set of metrics. Observe runs on the
// control loop while Readings is called from the display and the status
// reporter, so access is serialised.
type Recorder struct {
	mu      sync.Mutex
	metrics []Metric
}

// NewRecorder records ms, or the Standard set when none are given.
func NewRecorder(ms ...Metric) *Recorder {
	if len(ms) == 0 {
		ms = Standard()
	}
	return &Recorder{metrics: ms}
}

func (r *Recorder) Observe(s motor.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.metrics {
		m.Observe(s)
	}
}

// Readings returns the values in registration order.
func (r *Recorder) Readings() []Reading {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reading, len(r.metrics))
	for i, m := range r.metrics {
		out[i] = Reading{Name: m.Name(), Value: m.Value()}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.metrics {
		m.Reset()
	}
}
