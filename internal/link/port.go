package link

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	DefaultBaudRate     = 115200
	DefaultReadTimeout  = 100 * time.Millisecond
	DefaultWriteTimeout = 100 * time.Millisecond
	DefaultSettle       = 2 * time.Second
)

// Port is the subset of serial.Port the link needs. serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// Opener opens the named port. Tests replace it to avoid real hardware.
type Opener func(name string, mode *serial.Mode) (Port, error)

// Lister enumerates candidate port names.
type Lister func() ([]string, error)

// OpenSerial opens a real serial port.
func OpenSerial(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

// Options configures device discovery and framing timeouts.
type Options struct {
	Ports        []string // candidates; empty means every port on the host
	BaudRate     int
	DataBits     int
	StopBits     int
	Parity       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Settle       time.Duration // wait after open while the board resets

	Open   Opener
	List   Lister
	Clock  clock.Clock
	Logger *zap.SugaredLogger
}

// DefaultOptions returns the discovery settings used against real hardware.
func DefaultOptions() Options {
	return Options{
		BaudRate:     DefaultBaudRate,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		Settle:       DefaultSettle,
	}
}

// Normalize validates the options and fills unset values. A zero Settle is
// kept as is.
func (o Options) Normalize() (Options, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	opts.Parity = parity

	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}

	if opts.Open == nil {
		opts.Open = OpenSerial
	}
	if opts.List == nil {
		opts.List = serial.GetPortsList
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return opts, nil
}

// SerialMode converts normalized options into the go.bug.st/serial mode.
func (o Options) SerialMode() *serial.Mode {
	mode := &serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: o.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if o.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch o.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode
}
