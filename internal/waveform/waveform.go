// Package waveform synthesizes the time-indexed speed target.
//
// [ValueAt] is a pure function of elapsed time and parameters, so sampling it
// at any cadence reproduces the same trajectory.
package waveform

import (
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/revkit/internal/motor"
)

type Kind string

const (
	Square   Kind = "square"
	Sine     Kind = "sine"
	Triangle Kind = "triangle"
)

// Kinds lists the supported waveforms in display order.
func Kinds() []Kind {
	return []Kind{Square, Sine, Triangle}
}

// ParseKind accepts a waveform name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", &motor.ParamError{Name: "Wave", Value: strconv.Quote(s), Wrapped: motor.ErrInvalidWaveformParameter}
}

// Next returns the waveform following k in display order.
func (k Kind) Next() Kind {
	kinds := Kinds()
	for i, known := range kinds {
		if known == k {
			return kinds[(i+1)%len(kinds)]
		}
	}
	return kinds[0]
}

type Params struct {
	Kind      Kind
	Amplitude float64
	Offset    float64
	Period    float64 // seconds
}

// Validate rejects unknown kinds, non-finite values and non-positive periods.
func (p Params) Validate() error {
	if _, err := ParseKind(string(p.Kind)); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		v    float64
	}{{"Amplitude", p.Amplitude}, {"Offset", p.Offset}, {"Period", p.Period}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return invalid(f.name, f.v)
		}
	}
	if p.Period <= 0 {
		return invalid("Period", p.Period)
	}
	return nil
}

func invalid(name string, v float64) error {
	return &motor.ParamError{
		Name:    name,
		Value:   strconv.FormatFloat(v, 'g', -1, 64),
		Wrapped: motor.ErrInvalidWaveformParameter,
	}
}

// ValueAt returns the setpoint t seconds after the time origin. Params are
// expected to be validated; a non-positive period yields the offset.
func ValueAt(t float64, p Params) float64 {
	if !(p.Period > 0) {
		return p.Offset
	}

	switch p.Kind {
	case Square:
		if phase(t, p.Period) < p.Period/2 {
			return p.Offset + p.Amplitude
		}
		return p.Offset - p.Amplitude
	case Sine:
		omega := 2 * math.Pi / p.Period
		return p.Offset + p.Amplitude*math.Sin(omega*t)
	case Triangle:
		ph := phase(t, p.Period) / p.Period
		var val float64
		if ph < 0.5 {
			val = 2 * ph
		} else {
			val = 2 * (1 - ph)
		}
		return p.Offset + p.Amplitude*(2*val-1)
	default:
		return p.Offset
	}
}

// phase is t mod period, folded into [0, period) for negative t.
func phase(t, period float64) float64 {
	m := math.Mod(t, period)
	if m < 0 {
		m += period
	}
	return m
}

// Sample evaluates n evenly spaced points over [0, duration).
func Sample(p Params, duration float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	step := duration / float64(n)
	for i := range out {
		out[i] = ValueAt(float64(i)*step, p)
	}
	return out
}
