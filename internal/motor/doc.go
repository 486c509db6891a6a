// Package motor holds the primitives shared by every part of the speed
// controller: gains, history samples, the command bound, and the domain
// errors.
//
//   - [Gains]: proportional, integral and derivative coefficients
//   - [Sample]: one (measurement, setpoint, command) observation
//   - [ClampCommand], [LimitCommand]: convert a controller output into a wire command
//
// # Errors
//
// Only [ErrNoDeviceFound] is fatal. [ErrWriteTimeout] and
// [ErrMalformedMeasurement] are contained within a single control cycle, and
// [ErrInvalidWaveformParameter] is returned at the configuration boundary.
package motor
