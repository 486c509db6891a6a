// Package metrics scores how well the loop tracks its setpoint.
package metrics

import "github.com/san-kum/revkit/internal/motor"

// Metric accumulates one figure over a stream of samples.
type Metric interface {
	Name() string
	Observe(s motor.Sample)
	Value() float64
	Reset()
}

// Standard returns a fresh set of the running metrics reported by the
// monitor and by headless runs.
func Standard() []Metric {
	return []Metric{
		NewTrackingError(),
		NewControlEffort(),
		NewSaturation(motor.CommandLimit),
	}
}
