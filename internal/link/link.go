// Package link owns the serial connection to the motor board and speaks its
// line protocol.
//
// Inbound frames are "I:<decimal>\n" speed measurements. Outbound frames are
// bare decimal commands, "<int>\n". There is no handshake; a board is any
// port that opens.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/revkit/internal/motor"
)

const (
	measurementPrefix = "I:"
	maxLineLength     = 64
)

var errClosed = errors.New("link: closed")

// Link is an open, exclusively owned connection to one device.
type Link struct {
	name         string
	port         Port
	clk          clock.Clock
	logger       *zap.SugaredLogger
	writeTimeout time.Duration

	line  []byte
	chunk []byte

	writes    chan writeRequest
	done      chan struct{}
	closeOnce sync.Once
}

type writeRequest struct {
	data   []byte
	result chan error
}

// Connect opens the first candidate port that accepts the configured mode,
// waits for the board to settle, and returns the link. It is not retried;
// failure to open any port yields motor.ErrNoDeviceFound.
func Connect(ctx context.Context, o Options) (*Link, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	candidates := opts.Ports
	if len(candidates) == 0 {
		candidates, err = opts.List()
		if err != nil {
			opts.Logger.Warnw("cannot enumerate serial ports", "error", err)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w (no candidate ports)", motor.ErrNoDeviceFound)
	}

	mode := opts.SerialMode()
	for _, name := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		port, err := opts.Open(name, mode)
		if err != nil {
			opts.Logger.Debugw("port unavailable", "port", name, "error", err)
			continue
		}
		if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
			opts.Logger.Debugw("cannot set read timeout", "port", name, "error", err)
			port.Close()
			continue
		}

		if opts.Settle > 0 {
			opts.Logger.Debugw("waiting for device to settle", "port", name, "settle", opts.Settle)
			select {
			case <-opts.Clock.After(opts.Settle):
			case <-ctx.Done():
				port.Close()
				return nil, ctx.Err()
			}
		}

		opts.Logger.Infow("connected", "port", name, "baud", opts.BaudRate)
		return newLink(name, port, opts), nil
	}

	return nil, fmt.Errorf("%w (tried %s)", motor.ErrNoDeviceFound, strings.Join(candidates, ", "))
}

func newLink(name string, port Port, opts Options) *Link {
	l := &Link{
		name:         name,
		port:         port,
		clk:          opts.Clock,
		logger:       opts.Logger,
		writeTimeout: opts.WriteTimeout,
		line:         make([]byte, 0, maxLineLength),
		chunk:        make([]byte, maxLineLength),
		writes:       make(chan writeRequest),
		done:         make(chan struct{}),
	}
	go l.writeLoop()
	return l
}

// Name is the port the link is connected to.
func (l *Link) Name() string {
	return l.name
}

// ReadMeasurement discards stale input, reads the next line and parses it.
// A missing, unterminated or untagged line returns motor.ErrMalformedMeasurement,
// which callers treat as a skipped cycle.
func (l *Link) ReadMeasurement() (float64, error) {
	if err := l.port.ResetInputBuffer(); err != nil {
		return 0, fmt.Errorf("reset input buffer: %w", err)
	}
	line, err := l.readLine()
	if err != nil {
		return 0, err
	}
	return ParseMeasurement(line)
}

// readLine reads until '\n'. A read returning no bytes is the port's read
// timeout and ends the attempt; bytes after the newline are dropped since the
// next read starts from a cleared buffer.
func (l *Link) readLine() (string, error) {
	l.line = l.line[:0]
	for len(l.line) < maxLineLength {
		n, err := l.port.Read(l.chunk)
		if n > 0 {
			data := l.chunk[:n]
			if i := strings.IndexByte(string(data), '\n'); i >= 0 {
				l.line = append(l.line, data[:i]...)
				return string(l.line), nil
			}
			l.line = append(l.line, data...)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read %s: %w", l.name, err)
		}
		if n == 0 {
			break
		}
	}
	return "", fmt.Errorf("%w: unterminated line %q", motor.ErrMalformedMeasurement, l.line)
}

// ParseMeasurement decodes one "I:<decimal>" frame. Surrounding whitespace is
// ignored; NaN, infinities and hex floats are rejected.
func ParseMeasurement(line string) (float64, error) {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, measurementPrefix) {
		return 0, fmt.Errorf("%w: %q", motor.ErrMalformedMeasurement, s)
	}
	num := strings.TrimSpace(s[len(measurementPrefix):])
	if strings.ContainsAny(num, "xX") {
		return 0, fmt.Errorf("%w: %q", motor.ErrMalformedMeasurement, s)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", motor.ErrMalformedMeasurement, s)
	}
	return v, nil
}

// EncodeCommand renders a command frame.
func EncodeCommand(v int) []byte {
	return []byte(strconv.Itoa(v) + "\n")
}

// WriteCommand sends v as a decimal line. A write that does not complete
// within the write timeout returns motor.ErrWriteTimeout; the frame may still
// reach the device later, and ordering with later frames is preserved.
func (l *Link) WriteCommand(v int) error {
	return l.write(EncodeCommand(v))
}

func (l *Link) write(data []byte) error {
	req := writeRequest{data: data, result: make(chan error, 1)}
	timer := l.clk.Timer(l.writeTimeout)
	defer timer.Stop()

	select {
	case l.writes <- req:
	case <-timer.C:
		return motor.ErrWriteTimeout
	case <-l.done:
		return errClosed
	}

	select {
	case err := <-req.result:
		if err != nil {
			return fmt.Errorf("write %s: %w", l.name, err)
		}
		return nil
	case <-timer.C:
		return motor.ErrWriteTimeout
	}
}

// writeLoop serializes port writes so a timed-out write cannot interleave
// with the next one.
func (l *Link) writeLoop() {
	for {
		select {
		case req := <-l.writes:
			_, err := l.port.Write(req.data)
			req.result <- err
		case <-l.done:
			return
		}
	}
}

// Close sends the fail-safe zero command and releases the port. It is safe
// to call more than once; only the first call does anything.
func (l *Link) Close() error {
	err := errClosed
	l.closeOnce.Do(func() {
		err = l.write(EncodeCommand(0))
		if err != nil {
			l.logger.Warnw("fail-safe stop not confirmed, motor may still be driven", "port", l.name, "error", err)
		}
		close(l.done)
		err = multierr.Append(err, l.port.Close())
	})
	if errors.Is(err, errClosed) {
		return nil
	}
	return err
}
