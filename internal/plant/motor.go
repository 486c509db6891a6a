package plant

import (
	"math"
	"sync"
	"time"

	"github.com/san-kum/revkit/internal/motor"
)

const (
	DefaultSupplyVoltage = 12.0
	DefaultResistance    = 2.0   // ohm
	DefaultInductance    = 0.005 // henry
	DefaultMotorConstant = 0.05  // V·s/rad and N·m/A
	DefaultInertia       = 2e-4  // kg·m²
	DefaultFriction      = 1e-5  // N·m·s/rad
	DefaultGearRatio     = 8.0
	maxStep              = time.Millisecond
)

// DCMotor state is [armature current (A), shaft speed (rad/s)]. The input is
// a PWM command in [-255, 255] scaled onto the supply voltage.
type DCMotor struct {
	SupplyVoltage float64
	Resistance    float64
	Inductance    float64
	MotorConstant float64
	Inertia       float64
	Friction      float64
	GearRatio     float64
	Load          float64 // N·m opposing rotation

	mu    sync.Mutex
	x     State
	t     float64
	input float64
	integ *RK4
}

func NewDCMotor() *DCMotor {
	return &DCMotor{
		SupplyVoltage: DefaultSupplyVoltage,
		Resistance:    DefaultResistance,
		Inductance:    DefaultInductance,
		MotorConstant: DefaultMotorConstant,
		Inertia:       DefaultInertia,
		Friction:      DefaultFriction,
		GearRatio:     DefaultGearRatio,
		x:             State{0, 0},
		integ:         NewRK4(),
	}
}

func (m *DCMotor) StateDim() int { return 2 }

func (m *DCMotor) Derive(x State, u float64, t float64) State {
	current, omega := x[0], x[1]
	v := motor.Clamp(u, -motor.CommandLimit, motor.CommandLimit) / motor.CommandLimit * m.SupplyVoltage

	load := m.Load
	if omega < 0 {
		load = -load
	}

	return State{
		(v - m.Resistance*current - m.MotorConstant*omega) / m.Inductance,
		(m.MotorConstant*current - m.Friction*omega - load) / m.Inertia,
	}
}

// SetCommand latches the PWM input applied by subsequent Advance calls.
func (m *DCMotor) SetCommand(u int) {
	m.mu.Lock()
	m.input = float64(u)
	m.mu.Unlock()
}

// Advance integrates the motor forward by d in sub-steps of at most 1ms.
func (m *DCMotor) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for d > 0 {
		step := d
		if step > maxStep {
			step = maxStep
		}
		dt := step.Seconds()
		m.x = m.integ.Step(m, m.x, m.input, m.t, dt)
		m.t += dt
		d -= step
	}
}

// RPM is the gearbox output speed.
func (m *DCMotor) RPM() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.x[1] * 60 / (2 * math.Pi) / m.GearRatio
}

// SteadyStateRPM is the analytic output speed for a constant command with no load.
func (m *DCMotor) SteadyStateRPM(u int) float64 {
	v := motor.Clamp(float64(u), -motor.CommandLimit, motor.CommandLimit) / motor.CommandLimit * m.SupplyVoltage
	omega := m.MotorConstant * v / (m.Resistance*m.Friction + m.MotorConstant*m.MotorConstant)
	return omega * 60 / (2 * math.Pi) / m.GearRatio
}

func (m *DCMotor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.x = State{0, 0}
	m.t = 0
	m.input = 0
}
