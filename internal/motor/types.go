package motor

import (
	"math"
	"strconv"
)

// CommandLimit bounds every command sent to the device to [-CommandLimit, CommandLimit].
const CommandLimit = 255

type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Validate rejects NaN and infinite gains. Any finite value is accepted.
func (g Gains) Validate() error {
	for _, p := range []struct {
		name string
		v    float64
	}{{"Kp", g.Kp}, {"Ki", g.Ki}, {"Kd", g.Kd}} {
		if math.IsNaN(p.v) || math.IsInf(p.v, 0) {
			return &ParamError{Name: p.name, Value: strconv.FormatFloat(p.v, 'g', -1, 64), Wrapped: ErrInvalidGain}
		}
	}
	return nil
}

// Sample is one row of the rolling history.
type Sample struct {
	Measurement float64
	Setpoint    float64
	Command     int
}

// ClampCommand truncates a controller output toward zero and bounds it to
// the command range. NaN maps to zero.
func ClampCommand(u float64) int {
	return LimitCommand(u, CommandLimit)
}

// LimitCommand is ClampCommand with a caller-chosen bound.
func LimitCommand(u, limit float64) int {
	if math.IsNaN(u) {
		return 0
	}
	return int(Clamp(u, -limit, limit))
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
