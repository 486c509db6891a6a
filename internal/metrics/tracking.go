package metrics

import (
	"math"

	"github.com/san-kum/revkit/internal/motor"
)

// TrackingError is the RMS of setpoint minus measurement.
type TrackingError struct {
	name    string
	sumSq   float64
	samples int
}

func NewTrackingError() *TrackingError {
	return &TrackingError{
		name: "rms_error",
	}
}

func (e *TrackingError) Name() string {
	return e.name
}

func (e *TrackingError) Observe(s motor.Sample) {
	d := s.Setpoint - s.Measurement
	e.sumSq += d * d
	e.samples++
}

func (e *TrackingError) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return math.Sqrt(e.sumSq / float64(e.samples))
}

func (e *TrackingError) Reset() {
	e.sumSq = 0
	e.samples = 0
}
