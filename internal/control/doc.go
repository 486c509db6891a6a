// Package control runs the closed speed loop.
//
//   - [PID]: bounded PID with anti-windup and a minimum sample interval
//   - [Loop]: reads the device, computes a command and writes it back
//   - [SetpointLoop]: publishes the waveform target every 50 ms
//
// # Usage
//
//	shared, _ := state.New(gains, wave)
//	history := state.NewHistory(0)
//	loop := control.NewLoop(connect, shared, history)
//	sp := control.NewSetpointLoop(shared)
//	// run loop.Run and sp.Run on their own goroutines under one context
//
// Gains and waveform are read from the shared state every cycle, so edits
// apply on the next computation.
package control
