package link

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.bug.st/serial"

	"github.com/san-kum/revkit/internal/plant"
)

const (
	// SimPortName is the port name the simulated board answers to.
	SimPortName = "sim"

	// DefaultFrameInterval matches the board's 50 Hz reporting rate.
	DefaultFrameInterval = 20 * time.Millisecond
)

// SimPort is a Port backed by a simulated DC motor. It reports the motor
// speed as measurement frames on a fixed cadence and applies command frames
// written to it, so the whole stack can run without hardware.
type SimPort struct {
	mu sync.Mutex

	motor    *plant.DCMotor
	clk      clock.Clock
	interval time.Duration
	timeout  time.Duration

	last      time.Time
	nextFrame time.Time
	pending   []byte
	inbox     []byte
	closed    bool
}

// NewSimPort returns a simulated port driving m.
func NewSimPort(m *plant.DCMotor, clk clock.Clock) *SimPort {
	if clk == nil {
		clk = clock.New()
	}
	now := clk.Now()
	return &SimPort{
		motor:     m,
		clk:       clk,
		interval:  DefaultFrameInterval,
		timeout:   DefaultReadTimeout,
		last:      now,
		nextFrame: now.Add(DefaultFrameInterval),
	}
}

// SimOpener opens a SimPort for SimPortName and fails for any other name.
func SimOpener(m *plant.DCMotor, clk clock.Clock) Opener {
	return func(name string, _ *serial.Mode) (Port, error) {
		if name != SimPortName {
			return nil, fmt.Errorf("open %s: %w", name, ErrNoSuchPort)
		}
		return NewSimPort(m, clk), nil
	}
}

// SimLister reports the simulated port as the only one present.
func SimLister() ([]string, error) {
	return []string{SimPortName}, nil
}

// Motor exposes the simulated plant.
func (p *SimPort) Motor() *plant.DCMotor {
	return p.motor
}

// SetFrameInterval changes the reporting cadence.
func (p *SimPort) SetFrameInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d
	p.nextFrame = p.last.Add(d)
}

func (p *SimPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

// ResetInputBuffer drops frames that already arrived. The next frame is the
// first one due strictly after now.
func (p *SimPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	p.pending = p.pending[:0]
	now := p.clk.Now()
	if !p.nextFrame.After(now) {
		k := now.Sub(p.nextFrame)/p.interval + 1
		p.nextFrame = p.nextFrame.Add(k * p.interval)
	}
	return nil
}

func (p *SimPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrPortClosed
	}
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		p.mu.Unlock()
		return n, nil
	}
	wait := p.nextFrame.Sub(p.clk.Now())
	timeout := p.timeout
	p.mu.Unlock()

	if wait > timeout {
		p.clk.Sleep(timeout)
		return 0, nil
	}
	if wait > 0 {
		p.clk.Sleep(wait)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	p.advance()
	p.pending = fmt.Appendf(p.pending[:0], "I:%.2f\n", p.motor.RPM())
	p.nextFrame = p.nextFrame.Add(p.interval)
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Write applies every complete command line. Lines that are not integers
// are ignored, as the firmware does.
func (p *SimPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	p.advance()
	p.inbox = append(p.inbox, b...)
	for {
		i := bytes.IndexByte(p.inbox, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(p.inbox[:i])
		p.inbox = p.inbox[i+1:]
		if v, err := strconv.Atoi(string(line)); err == nil {
			p.motor.SetCommand(v)
		}
	}
	return len(b), nil
}

func (p *SimPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// advance runs the plant up to the current time. Callers hold p.mu.
func (p *SimPort) advance() {
	now := p.clk.Now()
	if d := now.Sub(p.last); d > 0 {
		p.motor.Advance(d)
	}
	p.last = now
}
