package control

import (
	"math"
	"time"

	"github.com/san-kum/revkit/internal/motor"
)

// DefaultMinSample is the shortest interval between two computations.
const DefaultMinSample = 10 * time.Millisecond

// Terms are the contributions of the last computation.
type Terms struct {
	P, I, D float64
}

// PID computes a bounded command from the tracking error. Gains are passed
// on every call. It is not safe for concurrent use.
type PID struct {
	Limit     float64
	MinSample time.Duration

	integral  float64
	prevErr   float64
	pending   time.Duration
	last      int
	hasOutput bool
	terms     Terms
}

func NewPID() *PID {
	return &PID{
		Limit:     motor.CommandLimit,
		MinSample: DefaultMinSample,
	}
}

// Compute returns the command for the given measurement and setpoint.
// elapsed is the time since the previous call; calls are accumulated until
// MinSample has passed, and until then the previous output is returned.
func (c *PID) Compute(measurement, setpoint float64, g motor.Gains, elapsed time.Duration) int {
	if elapsed > 0 {
		c.pending += elapsed
	}
	if c.hasOutput && c.pending < c.MinSample {
		return c.last
	}
	dt := c.pending.Seconds()
	c.pending = 0

	limit := c.Limit
	if limit <= 0 {
		limit = motor.CommandLimit
	}

	e := setpoint - measurement
	if math.IsNaN(e) || math.IsInf(e, 0) {
		e = 0
	}

	var deriv float64
	if c.hasOutput && dt > 0 {
		deriv = (e - c.prevErr) / dt
	}

	if dt > 0 {
		next := c.integral + e*dt
		raw := g.Kp*e + g.Ki*next + g.Kd*deriv
		// Integration stops while it would push further into saturation.
		if !(raw > limit && e > 0) && !(raw < -limit && e < 0) {
			c.integral = next
		}
	}
	if g.Ki != 0 {
		bound := limit / math.Abs(g.Ki)
		c.integral = motor.Clamp(c.integral, -bound, bound)
	}

	c.terms = Terms{P: g.Kp * e, I: g.Ki * c.integral, D: g.Kd * deriv}
	u := c.terms.P + c.terms.I + c.terms.D
	out := motor.LimitCommand(u, limit)

	c.prevErr = e
	c.last = out
	c.hasOutput = true
	return out
}

// Terms returns the contributions of the last computation.
func (c *PID) Terms() Terms {
	return c.terms
}

// Reset clears the integral, the previous error and the last output.
func (c *PID) Reset() {
	c.integral = 0
	c.prevErr = 0
	c.pending = 0
	c.last = 0
	c.hasOutput = false
	c.terms = Terms{}
}
