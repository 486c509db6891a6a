package control

import (
	"math/rand"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/san-kum/revkit/internal/motor"
)

const cycle = 20 * time.Millisecond

func TestPIDProportional(t *testing.T) {
	g := NewWithT(t)
	pid := NewPID()

	out := pid.Compute(100, 150, motor.Gains{Kp: 2}, 0)
	g.Expect(out).To(Equal(100))
	g.Expect(pid.Terms()).To(Equal(Terms{P: 100}))
}

func TestPIDFirstDerivativeIsZero(t *testing.T) {
	g := NewWithT(t)
	pid := NewPID()

	pid.Compute(0, 100, motor.Gains{Kd: 1}, cycle)
	g.Expect(pid.Terms().D).To(BeZero())

	pid.Compute(50, 100, motor.Gains{Kd: 1}, cycle)
	// error fell from 100 to 50 over 20ms
	g.Expect(pid.Terms().D).To(BeNumerically("~", -2500, 1e-6))
}

func TestPIDTruncates(t *testing.T) {
	g := NewWithT(t)
	pid := NewPID()
	g.Expect(pid.Compute(0, 10.9, motor.Gains{Kp: 1}, 0)).To(Equal(10))

	pid.Reset()
	g.Expect(pid.Compute(10.9, 0, motor.Gains{Kp: 1}, 0)).To(Equal(-10))
}

func TestPIDOutputBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pid := NewPID()

	for i := 0; i < 5000; i++ {
		gains := motor.Gains{
			Kp: rng.Float64() * 50,
			Ki: rng.Float64() * 50,
			Kd: rng.Float64() * 5,
		}
		measurement := (rng.Float64() - 0.5) * 2000
		setpoint := (rng.Float64() - 0.5) * 2000
		elapsed := time.Duration(rng.Intn(50)) * time.Millisecond

		out := pid.Compute(measurement, setpoint, gains, elapsed)
		if out < -255 || out > 255 {
			t.Fatalf("step %d: output %d out of bounds", i, out)
		}
	}
}

func TestPIDAntiWindupRecovers(t *testing.T) {
	tests := []struct {
		name  string
		gains motor.Gains
	}{
		{"proportional dominant", motor.Gains{Kp: 1.0, Ki: 1.8, Kd: 0.05}},
		{"integral dominant", motor.Gains{Kp: 0.1, Ki: 8, Kd: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			pid := NewPID()

			var out int
			for i := 0; i < 1000; i++ {
				out = pid.Compute(100, 200, tt.gains, cycle)
			}
			// Integration stops at the bound, so the output is pinned just under it.
			g.Expect(out).To(BeNumerically(">=", 250))
			g.Expect(pid.Terms().I).To(BeNumerically("<=", 255))

			recovered := -1
			for i := 0; i < 3; i++ {
				out = pid.Compute(300, 200, tt.gains, cycle)
				if out < 250 {
					recovered = i
					break
				}
			}
			g.Expect(recovered).To(BeNumerically(">=", 0), "output stayed saturated after the error reversed")
		})
	}
}

func TestPIDIntegralFrozenWhileSaturated(t *testing.T) {
	g := NewWithT(t)
	pid := NewPID()
	gains := motor.Gains{Kp: 1, Ki: 1}

	// P alone saturates, so nothing is integrated.
	for i := 0; i < 100; i++ {
		pid.Compute(0, 1000, gains, cycle)
	}
	g.Expect(pid.Terms().I).To(BeZero())

	out := pid.Compute(1000, 0, gains, cycle)
	g.Expect(out).To(Equal(-255))
}

func TestPIDMinimumSampleInterval(t *testing.T) {
	g := NewWithT(t)
	pid := NewPID()
	gains := motor.Gains{Kp: 1, Ki: 1, Kd: 0.05}

	first := pid.Compute(100, 150, gains, cycle)
	g.Expect(pid.Compute(0, 150, gains, 4*time.Millisecond)).To(Equal(first))
	g.Expect(pid.Compute(140, 150, gains, 5*time.Millisecond)).To(Equal(first))

	// 4+5+2 ms crosses the minimum, so this call computes.
	g.Expect(pid.Compute(150, 150, gains, 2*time.Millisecond)).NotTo(Equal(first))
}

func TestPIDLiveGains(t *testing.T) {
	g := NewWithT(t)
	pid := NewPID()

	g.Expect(pid.Compute(100, 200, motor.Gains{Kp: 1}, cycle)).To(Equal(100))
	g.Expect(pid.Compute(100, 200, motor.Gains{Kp: 2}, cycle)).To(Equal(200))
}

func TestPIDReset(t *testing.T) {
	g := NewWithT(t)
	pid := NewPID()
	gains := motor.Gains{Kp: 0, Ki: 1}

	for i := 0; i < 10; i++ {
		pid.Compute(0, 100, gains, 100*time.Millisecond)
	}
	g.Expect(pid.Terms().I).To(BeNumerically(">", 0))

	pid.Reset()
	g.Expect(pid.Terms()).To(Equal(Terms{}))
	g.Expect(pid.Compute(0, 100, gains, 0)).To(Equal(0))
}

func TestPIDCustomLimit(t *testing.T) {
	g := NewWithT(t)
	pid := &PID{Limit: 100, MinSample: DefaultMinSample}
	g.Expect(pid.Compute(0, 500, motor.Gains{Kp: 1}, 0)).To(Equal(100))
	pid.Reset()
	g.Expect(pid.Compute(500, 0, motor.Gains{Kp: 1}, 0)).To(Equal(-100))
}
