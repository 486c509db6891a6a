package link

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

var (
	ErrPortClosed = errors.New("port closed")
	ErrNoSuchPort = errors.New("no such port")
)

// TestablePort implements Port for tests. Frames queued with QueueLine become
// readable one at a time, each time the input buffer is reset, which is how a
// device streaming continuously looks to a reader that flushes before reading.
type TestablePort struct {
	mu sync.Mutex

	queue   []string
	input   bytes.Buffer
	written bytes.Buffer

	ReadTimeout  time.Duration
	IdleDelay    time.Duration // sleep on an empty read, bounded by ReadTimeout
	WriteLatency time.Duration
	ReadError    error
	WriteError   error
	CloseError   error

	closed     bool
	resetCalls int
	writeCalls int
}

// NewTestablePort returns a port that idles for a millisecond on empty reads.
func NewTestablePort() *TestablePort {
	return &TestablePort{IdleDelay: time.Millisecond}
}

// QueueLine queues one newline-terminated frame.
func (p *TestablePort) QueueLine(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range lines {
		p.queue = append(p.queue, l+"\n")
	}
}

// QueueRaw queues one frame exactly as given.
func (p *TestablePort) QueueRaw(frame string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, frame)
}

// Stale puts data directly in the input buffer, where the next reset drops it.
func (p *TestablePort) Stale(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input.WriteString(data)
}

func (p *TestablePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPortClosed
	}
	p.resetCalls++
	p.input.Reset()
	if len(p.queue) > 0 {
		p.input.WriteString(p.queue[0])
		p.queue = p.queue[1:]
	}
	return nil
}

func (p *TestablePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadTimeout = t
	return nil
}

func (p *TestablePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrPortClosed
	}
	if p.ReadError != nil {
		err := p.ReadError
		p.mu.Unlock()
		return 0, err
	}
	if p.input.Len() > 0 {
		n, _ := p.input.Read(b)
		p.mu.Unlock()
		return n, nil
	}
	idle := p.IdleDelay
	if p.ReadTimeout > 0 && idle > p.ReadTimeout {
		idle = p.ReadTimeout
	}
	p.mu.Unlock()

	if idle > 0 {
		time.Sleep(idle)
	}
	return 0, nil
}

func (p *TestablePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	latency := p.WriteLatency
	p.mu.Unlock()
	if latency > 0 {
		time.Sleep(latency)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeCalls++
	if p.closed {
		return 0, ErrPortClosed
	}
	if p.WriteError != nil {
		return 0, p.WriteError
	}
	p.written.Write(b)
	return len(b), nil
}

func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.CloseError
}

// Closed reports whether Close was called.
func (p *TestablePort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Pending is the number of queued frames not yet made readable.
func (p *TestablePort) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// ResetCalls counts ResetInputBuffer calls.
func (p *TestablePort) ResetCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resetCalls
}

// Writes returns every complete line written so far, without newlines.
func (p *TestablePort) Writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.written.String()
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// LastWrite returns the most recent written line, or "" if none.
func (p *TestablePort) LastWrite() string {
	w := p.Writes()
	if len(w) == 0 {
		return ""
	}
	return w[len(w)-1]
}

// MockOpener hands out prepared ports by name and records open attempts.
// Names with no port fail to open.
type MockOpener struct {
	mu    sync.Mutex
	Ports map[string]Port
	Calls []string
	Modes []*serial.Mode
}

func (m *MockOpener) Open(name string, mode *serial.Mode) (Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, name)
	m.Modes = append(m.Modes, mode)
	if p, ok := m.Ports[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("open %s: %w", name, ErrNoSuchPort)
}
