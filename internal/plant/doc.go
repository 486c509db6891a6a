// Package plant models the motor on the far side of the serial link so the
// controller can run without hardware.
//
// [DCMotor] is a brushed DC motor with armature inductance and a gearbox,
// stepped with the fixed-step [RK4] integrator.
//
// # Usage
//
//	m := plant.NewDCMotor()
//	m.SetCommand(120)
//	m.Advance(20 * time.Millisecond)
//	rpm := m.RPM()
package plant
