package motor

import (
	"errors"
	"fmt"
)

// Domain errors for control operations.
var (
	// ErrNoDeviceFound indicates no candidate serial port could be opened.
	ErrNoDeviceFound = errors.New("motor: no serial device found")

	// ErrWriteTimeout indicates a command was not written within the write timeout.
	ErrWriteTimeout = errors.New("motor: serial write timed out")

	// ErrMalformedMeasurement indicates a missing, garbled or untagged input line.
	ErrMalformedMeasurement = errors.New("motor: malformed measurement")

	// ErrInvalidWaveformParameter indicates a waveform parameter outside its valid domain.
	ErrInvalidWaveformParameter = errors.New("motor: invalid waveform parameter")

	// ErrInvalidGain indicates a non-finite controller gain.
	ErrInvalidGain = errors.New("motor: invalid gain")
)

// ParamError wraps a rejected parameter with its name and value.
type ParamError struct {
	Name    string
	Value   string
	Wrapped error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: %s=%s", e.Wrapped.Error(), e.Name, e.Value)
}

func (e *ParamError) Unwrap() error {
	return e.Wrapped
}
