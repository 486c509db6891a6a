package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/san-kum/revkit/internal/motor"
	"github.com/san-kum/revkit/internal/state"
)

// retryDelay paces the loop after a read error that is not a timeout or a
// bad frame, such as an unplugged device.
const retryDelay = 100 * time.Millisecond

// Device is the loop's view of the serial link.
type Device interface {
	ReadMeasurement() (float64, error)
	WriteCommand(v int) error
	Close() error
}

// Connector opens the device. It is called once per Run.
type Connector func(ctx context.Context) (Device, error)

type LoopState int32

const (
	Connecting LoopState = iota
	Running
	ShuttingDown
	Closed
)

func (s LoopState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting down"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("LoopState(%d)", int32(s))
	}
}

// Stats counts loop outcomes since Run started.
type Stats struct {
	Cycles        uint64
	SkippedReads  uint64
	WriteTimeouts uint64
	WriteErrors   uint64
}

// Loop owns the device for the duration of Run.
type Loop struct {
	connect   Connector
	shared    *state.Shared
	history   *state.History
	pid       *PID
	clk       clock.Clock
	logger    *zap.SugaredLogger
	observers []func(motor.Sample)

	state         atomic.Int32
	cycles        atomic.Uint64
	skipped       atomic.Uint64
	writeTimeouts atomic.Uint64
	writeErrors   atomic.Uint64
	termP         atomic.Float64
	termI         atomic.Float64
	termD         atomic.Float64

	lastCompute time.Time
}

type LoopOption func(*Loop)

func WithClock(clk clock.Clock) LoopOption {
	return func(l *Loop) { l.clk = clk }
}

func WithLogger(logger *zap.SugaredLogger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

func WithPID(pid *PID) LoopOption {
	return func(l *Loop) { l.pid = pid }
}

// WithObserver registers fn to be called with every completed cycle. It runs
// on the loop goroutine and must not block.
func WithObserver(fn func(motor.Sample)) LoopOption {
	return func(l *Loop) { l.observers = append(l.observers, fn) }
}

func NewLoop(connect Connector, shared *state.Shared, history *state.History, opts ...LoopOption) *Loop {
	l := &Loop{
		connect: connect,
		shared:  shared,
		history: history,
		pid:     NewPID(),
		clk:     clock.New(),
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) State() LoopState {
	return LoopState(l.state.Load())
}

func (l *Loop) setState(s LoopState) {
	l.state.Store(int32(s))
	l.logger.Debugw("control loop state", "state", s)
}

func (l *Loop) Stats() Stats {
	return Stats{
		Cycles:        l.cycles.Load(),
		SkippedReads:  l.skipped.Load(),
		WriteTimeouts: l.writeTimeouts.Load(),
		WriteErrors:   l.writeErrors.Load(),
	}
}

// Terms returns the PID contributions of the last computed cycle.
func (l *Loop) Terms() Terms {
	return Terms{P: l.termP.Load(), I: l.termI.Load(), D: l.termD.Load()}
}

// Run connects, then runs control cycles until ctx is done. The in-flight
// cycle completes before the device is closed, which sends the zero command.
// Only a failed connection is returned as an error.
func (l *Loop) Run(ctx context.Context) error {
	l.setState(Connecting)
	dev, err := l.connect(ctx)
	if err != nil {
		l.setState(Closed)
		return err
	}

	l.setState(Running)
	l.lastCompute = l.clk.Now()
	for ctx.Err() == nil {
		if err := l.cycle(dev); err != nil {
			select {
			case <-ctx.Done():
			case <-l.clk.After(retryDelay):
			}
		}
	}

	l.setState(ShuttingDown)
	if err := dev.Close(); err != nil {
		l.logger.Warnw("closing device", "error", err)
	}
	l.setState(Closed)
	return nil
}

// cycle runs one read-compute-write pass. A returned error means the device
// failed in a way worth backing off from.
func (l *Loop) cycle(dev Device) error {
	measurement, err := dev.ReadMeasurement()
	if err != nil {
		l.skipped.Inc()
		if errors.Is(err, motor.ErrMalformedMeasurement) {
			l.logger.Debugw("skipping cycle", "error", err)
			return nil
		}
		l.logger.Warnw("read failed", "error", err)
		return err
	}

	now := l.clk.Now()
	elapsed := now.Sub(l.lastCompute)
	l.lastCompute = now

	setpoint := l.shared.Setpoint()
	command := l.pid.Compute(measurement, setpoint, l.shared.Gains(), elapsed)
	terms := l.pid.Terms()
	l.termP.Store(terms.P)
	l.termI.Store(terms.I)
	l.termD.Store(terms.D)

	if err := dev.WriteCommand(command); err != nil {
		if errors.Is(err, motor.ErrWriteTimeout) {
			l.writeTimeouts.Inc()
			l.logger.Warnw("command write timed out", "command", command)
		} else {
			l.writeErrors.Inc()
			l.logger.Warnw("command write failed", "command", command, "error", err)
		}
	}

	l.shared.SetMeasurement(measurement)
	l.shared.SetCommand(command)

	sample := motor.Sample{Measurement: measurement, Setpoint: setpoint, Command: command}
	l.history.Append(sample)
	for _, fn := range l.observers {
		fn(sample)
	}
	l.cycles.Inc()
	return nil
}
