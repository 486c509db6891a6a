// Package state holds the live values shared between the control loop, the
// setpoint loop and observers, plus the rolling sample history.
//
// Each field of [Shared] is an independent atomic cell. Readers may observe
// values written at slightly different instants; no operation spans fields.
package state

import (
	"go.uber.org/atomic"

	"github.com/san-kum/revkit/internal/motor"
	"github.com/san-kum/revkit/internal/waveform"
)

// Shared is the single source of truth for live control values.
//
// Writers: the control loop owns measurement and command, the setpoint loop
// owns setpoint, and the configuration layer owns gains and waveform.
type Shared struct {
	measurement *atomic.Float64
	measured    *atomic.Bool
	command     *atomic.Int64
	setpoint    *atomic.Float64

	kp *atomic.Float64
	ki *atomic.Float64
	kd *atomic.Float64

	wave      *atomic.String
	amplitude *atomic.Float64
	offset    *atomic.Float64
	period    *atomic.Float64
}

// Snapshot is a field-by-field read of Shared.
type Snapshot struct {
	Measurement float64
	Measured    bool
	Command     int
	Setpoint    float64
	Gains       motor.Gains
	Waveform    waveform.Params
}

// New validates the initial tunables and returns a Shared seeded with them.
// The setpoint starts at the waveform value for t=0.
func New(g motor.Gains, w waveform.Params) (*Shared, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	w.Kind, _ = waveform.ParseKind(string(w.Kind))
	return &Shared{
		measurement: atomic.NewFloat64(0),
		measured:    atomic.NewBool(false),
		command:     atomic.NewInt64(0),
		setpoint:    atomic.NewFloat64(waveform.ValueAt(0, w)),
		kp:          atomic.NewFloat64(g.Kp),
		ki:          atomic.NewFloat64(g.Ki),
		kd:          atomic.NewFloat64(g.Kd),
		wave:        atomic.NewString(string(w.Kind)),
		amplitude:   atomic.NewFloat64(w.Amplitude),
		offset:      atomic.NewFloat64(w.Offset),
		period:      atomic.NewFloat64(w.Period),
	}, nil
}

// Measurement returns the last good measurement and whether one was ever published.
func (s *Shared) Measurement() (float64, bool) {
	return s.measurement.Load(), s.measured.Load()
}

func (s *Shared) SetMeasurement(v float64) {
	s.measurement.Store(v)
	s.measured.Store(true)
}

func (s *Shared) Command() int {
	return int(s.command.Load())
}

func (s *Shared) SetCommand(v int) {
	s.command.Store(int64(v))
}

func (s *Shared) Setpoint() float64 {
	return s.setpoint.Load()
}

func (s *Shared) SetSetpoint(v float64) {
	s.setpoint.Store(v)
}

func (s *Shared) Gains() motor.Gains {
	return motor.Gains{Kp: s.kp.Load(), Ki: s.ki.Load(), Kd: s.kd.Load()}
}

// SetGains rejects non-finite gains and leaves the current ones in place.
func (s *Shared) SetGains(g motor.Gains) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.kp.Store(g.Kp)
	s.ki.Store(g.Ki)
	s.kd.Store(g.Kd)
	return nil
}

func (s *Shared) Waveform() waveform.Params {
	return waveform.Params{
		Kind:      waveform.Kind(s.wave.Load()),
		Amplitude: s.amplitude.Load(),
		Offset:    s.offset.Load(),
		Period:    s.period.Load(),
	}
}

// SetWaveform rejects invalid parameters before they can reach the generator.
func (s *Shared) SetWaveform(w waveform.Params) error {
	if err := w.Validate(); err != nil {
		return err
	}
	kind, _ := waveform.ParseKind(string(w.Kind))
	s.wave.Store(string(kind))
	s.amplitude.Store(w.Amplitude)
	s.offset.Store(w.Offset)
	s.period.Store(w.Period)
	return nil
}

func (s *Shared) Snapshot() Snapshot {
	m, ok := s.Measurement()
	return Snapshot{
		Measurement: m,
		Measured:    ok,
		Command:     s.Command(),
		Setpoint:    s.Setpoint(),
		Gains:       s.Gains(),
		Waveform:    s.Waveform(),
	}
}
